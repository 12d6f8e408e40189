package stages

import (
	"fmt"
	"strings"
	"time"

	"github.com/archon-installer/archon/constants"
)

// Network brings up connectivity. Failure here is soft: the outcome is
// recorded but never blocks progression, the operator may have a local
// mirror or retry later.
func Network(d *Deps) error {
	if probeConnectivity(d) {
		d.Session.NetworkOnline = true
		reconfigure, err := d.Prompt.Confirm("Network already reachable. Configure anyway?", false)
		if err != nil {
			return err
		}
		if !reconfigure {
			return nil
		}
	}

	choice, err := d.Prompt.Select("Network setup", []string{"wired", "wireless", "skip"})
	if err != nil {
		return err
	}
	switch choice {
	case "wired":
		if err := wiredSetup(d); err != nil {
			d.Log.Warnf("wired setup failed: %s", err)
		}
	case "wireless":
		if err := wirelessSetup(d); err != nil {
			d.Log.Warnf("wireless setup failed: %s", err)
		}
	case "skip":
		return nil
	default:
		d.Prompt.Warn(fmt.Sprintf("unknown choice %q", choice))
		return nil
	}

	d.Session.NetworkOnline = probeConnectivity(d)
	if !d.Session.NetworkOnline {
		d.Prompt.Warn("still offline; base system installation will need a reachable mirror")
	}
	return nil
}

// probeConnectivity is a single reachability probe with a short timeout.
func probeConnectivity(d *Deps) bool {
	res, err := d.Run.Run("ping", "-c", "1", "-W", "2", constants.ConnectivityHost)
	return err == nil && res.ExitCode == 0
}

// listInterfaces parses the link listing query into interface names,
// loopback excluded.
func listInterfaces(d *Deps) ([]string, error) {
	out, err := d.Run.Query("ip", "-o", "link", "show")
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[1], ":")
		if name == "lo" || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func wiredSetup(d *Deps) error {
	ifaces, err := listInterfaces(d)
	if err != nil {
		return err
	}
	if len(ifaces) == 0 {
		return fmt.Errorf("no network interfaces found")
	}
	iface, err := d.Prompt.Select("Interface", ifaces)
	if err != nil {
		return err
	}
	if err := mustRun(d.Run, "requesting DHCP lease", "dhcpcd", iface); err != nil {
		return err
	}
	// Lease acquisition is launched and then waited on for a fixed grace
	// period rather than polled to completion.
	grace := d.LeaseGrace
	if grace == 0 {
		grace = 5 * time.Second
	}
	time.Sleep(grace)
	return nil
}

func wirelessSetup(d *Deps) error {
	ifaces, err := listInterfaces(d)
	if err != nil {
		return err
	}
	var wireless []string
	for _, name := range ifaces {
		if strings.HasPrefix(name, "wl") {
			wireless = append(wireless, name)
		}
	}
	if len(wireless) == 0 {
		return fmt.Errorf("no wireless interfaces found")
	}
	dev := wireless[0]
	if len(wireless) > 1 {
		if dev, err = d.Prompt.Select("Wireless interface", wireless); err != nil {
			return err
		}
	}

	if err := mustRun(d.Run, "scanning for networks", "iwctl", "station", dev, "scan"); err != nil {
		return err
	}
	networks, err := d.Run.Query("iwctl", "station", dev, "get-networks")
	if err != nil {
		return fmt.Errorf("listing networks: %w", err)
	}
	d.Prompt.Say(networks)

	ssid, err := d.Prompt.Input("Network name", "")
	if err != nil {
		return err
	}
	passphrase, err := d.Prompt.Password("Passphrase")
	if err != nil {
		return err
	}
	return mustRun(d.Run, "connecting", "iwctl", "--passphrase", passphrase, "station", dev, "connect", ssid)
}
