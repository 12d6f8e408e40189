package main

import (
	"fmt"
	"os"

	vfs "github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
	mount "k8s.io/mount-utils"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/controller"
	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/hardware"
	"github.com/archon-installer/archon/layout"
	"github.com/archon-installer/archon/prompt"
	"github.com/archon-installer/archon/session"
	"github.com/archon-installer/archon/stages"
	"github.com/archon-installer/archon/types"
)

var version = "v0.0.0-dev"

func main() {
	app := &cli.App{
		Name:    "archon",
		Version: version,
		Usage:   "interactive, resumable Arch Linux installer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "transcript verbosity (trace, debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "do not mirror the transcript to the console",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Value: "/var/log/archon",
				Usage: "directory for installation transcripts",
			},
		},
		DefaultCommand: "install",
		Commands: []*cli.Command{
			{
				Name:      "install",
				Usage:     "run the interactive installation session",
				ArgsUsage: "[config-file]",
				Action:    runInstall,
			},
			{
				Name:  "probe",
				Usage: "print what the installer detects about this machine",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "query",
						Usage: "jq path into the probe result, e.g. disks or cpu_vendor",
					},
				},
				Action: runProbe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (types.SessionLogger, error) {
	return types.NewSessionLogger(c.String("log-dir"), c.String("log-level"), c.Bool("quiet"))
}

func runInstall(c *cli.Context) error {
	if os.Geteuid() != 0 {
		return cli.Exit(fmt.Errorf("%w: the installer partitions disks and writes the target tree", types.ErrPrivilege), 1)
	}

	log, err := newLogger(c)
	if err != nil {
		return err
	}
	log.Infof("archon %s starting, transcript at %s", version, log.Path())

	firmware := hardware.DetectFirmware(hardware.NewPaths(""))
	log.Infof("firmware boot mode: %s", firmware)

	s := session.New(firmware, log.Path())
	if cfgFile := c.Args().First(); cfgFile != "" {
		if err := s.LoadConfig(cfgFile); err != nil {
			return err
		}
		log.Infof("loaded answers from %s", cfgFile)
	}

	run := executor.New(log)
	term := prompt.NewTerm()
	deps := &stages.Deps{
		Session: s,
		Run:     run,
		Chroot:  run.Chroot(constants.MountRoot),
		Prompt:  term,
		FS:      vfs.OSFS,
		Mat:     layout.NewMaterializer(run, mount.New(""), log, constants.MountRoot),
		RAM:     hardware.TotalRAM,
		Vendor:  hardware.CPUVendor,
		Log:     log,
	}

	return controller.New(s, deps, term, run, log).Run()
}

func runProbe(c *cli.Context) error {
	log := types.NewNullLogger()
	run := executor.New(log)

	p := hardware.Probe{
		Firmware: hardware.DetectFirmware(hardware.NewPaths("")),
	}
	if ram, err := hardware.TotalRAM(); err == nil {
		p.RAMBytes = ram
	}
	if vendor, err := hardware.CPUVendor(); err == nil {
		p.CPUVendor = string(vendor)
	}
	if disks, err := layout.ListCandidateDisks(run); err == nil {
		p.Disks = disks
	}

	if q := c.String("query"); q != "" {
		out, err := p.Query(q)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	out, err := p.YAML()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
