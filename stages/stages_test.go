package stages

import (
	"fmt"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4/vfst"

	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/prompt"
	"github.com/archon-installer/archon/session"
	"github.com/archon-installer/archon/types"
)

func TestStages(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Stages test suite")
}

type fakeMat struct {
	layouts []types.DiskLayout
	err     error
}

func (f *fakeMat) Materialize(l types.DiskLayout) error {
	f.layouts = append(f.layouts, l)
	return f.err
}

var _ = Describe("Stages", func() {
	var d *Deps
	var run, chroot *executor.FakeRunner
	var script *prompt.Script
	var mat *fakeMat
	var cleanup func()

	newFS := func(extra map[string]interface{}) {
		if cleanup != nil {
			cleanup()
		}
		files := map[string]interface{}{
			"/mnt/etc/pacman.conf": "#Color\n#ParallelDownloads = 5\n#[multilib]\n#Include = /etc/pacman.d/mirrorlist\n",
		}
		for k, v := range extra {
			files[k] = v
		}
		fs, c, err := vfst.NewTestFS(files)
		Expect(err).ToNot(HaveOccurred())
		cleanup = c
		d.FS = fs
	}

	BeforeEach(func() {
		run = executor.NewFakeRunner()
		chroot = executor.NewFakeRunner()
		script = &prompt.Script{}
		mat = &fakeMat{}
		d = &Deps{
			Session:    session.New(types.FirmwareUEFI, ""),
			Run:        run,
			Chroot:     chroot,
			Prompt:     script,
			Mat:        mat,
			RAM:        func() (int64, error) { return 4096 * 1024 * 1024, nil },
			Vendor:     func() (types.CPUVendor, error) { return types.VendorIntel, nil },
			Log:        types.NewNullLogger(),
			LeaseGrace: time.Millisecond,
		}
		newFS(nil)
	})

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	Describe("Keyboard", func() {
		It("re-prompts until the collaborator accepts the keymap", func() {
			run.Fail("loadkeys bogus", 1, "cannot open file bogus")
			script.Inputs = []string{"bogus", "de-latin1"}

			Expect(Keyboard(d)).To(Succeed())
			Expect(d.Session.Config.Keymap).To(Equal("de-latin1"))
			Expect(run.CallCount("loadkeys")).To(Equal(2))
			Expect(script.Warnings).To(HaveLen(1))
		})

		It("uses the configured keymap without prompting", func() {
			d.Session.Config.Keymap = "us"
			Expect(Keyboard(d)).To(Succeed())
			Expect(run.Called("loadkeys us")).To(BeTrue())
		})
	})

	Describe("Network", func() {
		It("skips cleanly when the operator chooses skip", func() {
			run.Fail("ping", 1, "")
			script.Selections = []string{"skip"}

			Expect(Network(d)).To(Succeed())
			Expect(run.Called("dhcpcd")).To(BeFalse())
		})

		It("treats a failed wired setup as a soft failure", func() {
			run.Fail("ping", 1, "")
			run.Script("ip -o link show", executor.Result{Stdout: "1: lo: <LOOPBACK>\n2: enp3s0: <BROADCAST>\n"})
			run.Fail("dhcpcd", 1, "timed out")
			script.Selections = []string{"wired", "enp3s0"}

			Expect(Network(d)).To(Succeed())
			Expect(d.Session.NetworkOnline).To(BeFalse())
		})

		It("records success after a working wired setup", func() {
			// First probe offline, configure, then the re-probe succeeds.
			run.Script("ip -o link show", executor.Result{Stdout: "2: enp3s0: <BROADCAST>\n"})
			run.ScriptOnce("ping", executor.Result{ExitCode: 1})
			script.Selections = []string{"wired", "enp3s0"}

			Expect(Network(d)).To(Succeed())
			Expect(run.Called("dhcpcd enp3s0")).To(BeTrue())
			Expect(d.Session.NetworkOnline).To(BeTrue())
		})
	})

	Describe("Partition", func() {
		BeforeEach(func() {
			d.Session.Config.TargetDisk = "/dev/sda"
			d.Session.Config.SwapSize = "auto"
			d.Session.Config.RootFilesystem = types.FSExt4
			run.Script("blkid", executor.Result{Stdout: "5f6e2a14-10cf-4a7b-9a3e-b94f1e2c0c11\n"})
		})

		It("aborts without touching anything when the confirmation is declined", func() {
			script.Confirms = []bool{false}

			err := Partition(d)
			Expect(err).To(MatchError(types.ErrAborted))
			Expect(mat.layouts).To(BeEmpty())
			Expect(run.Commands).To(BeEmpty())
		})

		It("aborts when the typed disk name does not match", func() {
			script.Confirms = []bool{true}
			script.Inputs = []string{"/dev/sdb"}

			err := Partition(d)
			Expect(err).To(MatchError(types.ErrAborted))
			Expect(mat.layouts).To(BeEmpty())
		})

		It("materializes the plan and records the partition nodes", func() {
			script.Confirms = []bool{true}
			script.Inputs = []string{"/dev/sda"}

			Expect(Partition(d)).To(Succeed())
			Expect(mat.layouts).To(HaveLen(1))
			Expect(mat.layouts[0].SwapBytes).To(Equal(int64(4096 * 1024 * 1024)))
			Expect(d.Session.RootPartition).To(Equal("/dev/sda3"))
			Expect(d.Session.EFIPartition).To(Equal("/dev/sda1"))
			Expect(d.Session.RootMounted).To(BeTrue())
			Expect(d.Session.RootUUID).To(Equal("5f6e2a14-10cf-4a7b-9a3e-b94f1e2c0c11"))
		})

		It("rejects a malformed UUID from the device query", func() {
			run.Script("blkid", executor.Result{Stdout: "not-a-uuid\n"})
			script.Confirms = []bool{true}
			script.Inputs = []string{"/dev/sda"}

			err := Partition(d)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not-a-uuid"))
		})
	})

	Describe("BaseInstall", func() {
		BeforeEach(func() {
			yes, no := true, false
			d.Session.Config.BaseDevel = &yes
			d.Session.Config.WifiTools = &no
			run.Script("genfstab", executor.Result{Stdout: "UUID=abcd / ext4 rw 0 1"})
			// Decline the fstab review by default.
			script.Confirms = []bool{false}
		})

		It("installs the intel microcode for a GenuineIntel CPU, never the AMD one", func() {
			Expect(BaseInstall(d)).To(Succeed())

			var pacstrap string
			for _, argv := range run.Commands {
				if argv[0] == "pacstrap" {
					pacstrap = fmt.Sprint(argv)
				}
			}
			Expect(pacstrap).To(ContainSubstring("intel-ucode"))
			Expect(pacstrap).NotTo(ContainSubstring("amd-ucode"))
			Expect(pacstrap).To(ContainSubstring("base-devel"))
			Expect(pacstrap).NotTo(ContainSubstring("iwd"))
			Expect(d.Session.Microcode).To(Equal("intel-ucode"))
		})

		It("appends the generated fstab to the target", func() {
			Expect(BaseInstall(d)).To(Succeed())
			content, err := d.FS.ReadFile("/mnt/etc/fstab")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(ContainSubstring("UUID=abcd / ext4"))
		})

		It("fails hard when pacstrap fails", func() {
			run.Fail("pacstrap", 1, "mirror unreachable")
			err := BaseInstall(d)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("installing base system"))
		})

		It("opens the fstab in an editor when the operator asks", func() {
			GinkgoT().Setenv("EDITOR", "")
			script.Confirms = []bool{true}

			Expect(BaseInstall(d)).To(Succeed())
			Expect(run.Interactive).To(ContainElement([]string{"nano", "/mnt/etc/fstab"}))
		})
	})

	Describe("Configure", func() {
		BeforeEach(func() {
			no := false
			d.Session.Config.Timezone = "Europe/Berlin"
			d.Session.Config.Locale = "en_US.UTF-8"
			d.Session.Config.Hostname = "box"
			d.Session.Config.Keymap = "de-latin1"
			d.Session.Config.Multilib = &no
		})

		It("writes the system files and regenerates the initramfs last", func() {
			Expect(Configure(d)).To(Succeed())

			host, _ := d.FS.ReadFile("/mnt/etc/hostname")
			Expect(string(host)).To(Equal("box\n"))
			hosts, _ := d.FS.ReadFile("/mnt/etc/hosts")
			Expect(string(hosts)).To(ContainSubstring("127.0.1.1\tbox.localdomain\tbox"))
			vconsole, _ := d.FS.ReadFile("/mnt/etc/vconsole.conf")
			Expect(string(vconsole)).To(Equal("KEYMAP=de-latin1\n"))
			localeConf, _ := d.FS.ReadFile("/mnt/etc/locale.conf")
			Expect(string(localeConf)).To(Equal("LANG=en_US.UTF-8\n"))
			pacman, _ := d.FS.ReadFile("/mnt/etc/pacman.conf")
			Expect(string(pacman)).To(ContainSubstring("\nParallelDownloads = 5"))
			Expect(string(pacman)).To(ContainSubstring("#[multilib]"), "multilib stays off unless asked for")

			last := chroot.Commands[len(chroot.Commands)-1]
			Expect(last[0]).To(Equal("mkinitcpio"))
		})

		It("uncomments multilib when enabled", func() {
			yes := true
			d.Session.Config.Multilib = &yes
			Expect(Configure(d)).To(Succeed())
			pacman, _ := d.FS.ReadFile("/mnt/etc/pacman.conf")
			Expect(string(pacman)).To(ContainSubstring("[multilib]\nInclude = /etc/pacman.d/mirrorlist"))
			Expect(chroot.Called("pacman -Sy")).To(BeTrue())
		})

		It("does not duplicate a locale.gen entry sitting on the first line", func() {
			newFS(map[string]interface{}{
				"/mnt/etc/locale.gen": "en_US.UTF-8 UTF-8\n",
			})
			Expect(Configure(d)).To(Succeed())
			gen, err := d.FS.ReadFile("/mnt/etc/locale.gen")
			Expect(err).ToNot(HaveOccurred())
			Expect(strings.Count(string(gen), "en_US.UTF-8 UTF-8\n")).To(Equal(1))
		})
	})

	Describe("Users", func() {
		It("creates the user, sets both passwords and writes the sudoers drop-in", func() {
			d.Session.Config.RootPassword = "rootpw"
			d.Session.Config.UserPassword = "userpw"
			script.Inputs = []string{"Bob", "bob"}

			Expect(Users(d)).To(Succeed())
			Expect(d.Session.Config.Username).To(Equal("bob"))
			Expect(script.Warnings).NotTo(BeEmpty(), "the invalid username must be called out")
			Expect(chroot.Called("useradd -m -G wheel,audio,video,storage,optical bob")).To(BeTrue())
			Expect(chroot.Inputs["chpasswd"]).To(Equal("bob:userpw\n"))

			sudoers, err := d.FS.ReadFile("/mnt/etc/sudoers.d/10-wheel")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(sudoers)).To(Equal("%wheel ALL=(ALL:ALL) ALL\n"))
		})

		It("tolerates an already existing user on re-run", func() {
			d.Session.Config.RootPassword = "rootpw"
			d.Session.Config.UserPassword = "userpw"
			d.Session.Config.Username = "bob"
			chroot.Fail("useradd", 9, "user bob already exists")

			Expect(Users(d)).To(Succeed())
		})
	})

	Describe("Packages", func() {
		BeforeEach(func() {
			no := false
			d.Session.Config.Username = "bob"
			d.Session.Config.EnableSSH = &no
			d.Session.Config.ExtraPackages = []string{"vim", "git"}
		})

		It("installs extras, enables services and seeds the profile", func() {
			Expect(Packages(d)).To(Succeed())
			Expect(chroot.Called("pacman -S --noconfirm --needed vim git")).To(BeTrue())
			Expect(chroot.Called("systemctl enable NetworkManager")).To(BeTrue())
			Expect(chroot.Called("systemctl enable systemd-timesyncd")).To(BeTrue())
			Expect(chroot.Called("chown -R bob:bob /home/bob")).To(BeTrue())
			Expect(chroot.Called("systemctl enable sshd")).To(BeFalse())

			profile, err := d.FS.ReadFile("/mnt/home/bob/.bashrc")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(profile)).To(ContainSubstring("alias ls="))
		})

		It("enables sshd when asked", func() {
			yes := true
			d.Session.Config.EnableSSH = &yes
			Expect(Packages(d)).To(Succeed())
			Expect(chroot.Called("systemctl enable sshd")).To(BeTrue())
		})
	})

	Describe("Bootloader", func() {
		BeforeEach(func() {
			d.Session.RootUUID = "5f6e2a14-10cf-4a7b-9a3e-b94f1e2c0c11"
			d.Session.Config.TargetDisk = "/dev/sda"
		})

		It("forces GRUB under legacy BIOS regardless of the preference", func() {
			d.Session.Firmware = types.FirmwareBIOS
			d.Session.Config.Bootloader = types.BootSystemdBoot

			Expect(Bootloader(d)).To(Succeed())
			Expect(d.Session.Config.Bootloader).To(Equal(types.BootGrub))
			Expect(script.Warnings).NotTo(BeEmpty())
			Expect(chroot.Called("grub-install --target=i386-pc /dev/sda")).To(BeTrue())
			Expect(chroot.Called("grub-mkconfig")).To(BeTrue())
			Expect(chroot.Called("bootctl")).To(BeFalse())
		})

		It("writes systemd-boot entries with the microcode initrd and root UUID", func() {
			d.Session.Microcode = "intel-ucode"
			d.Session.Config.Bootloader = types.BootSystemdBoot

			Expect(Bootloader(d)).To(Succeed())
			Expect(chroot.Called("bootctl install")).To(BeTrue())

			loader, err := d.FS.ReadFile("/mnt/boot/loader/loader.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(loader)).To(Equal("default arch.conf\ntimeout 3\nconsole-mode auto\neditor no\n"))

			entry, err := d.FS.ReadFile("/mnt/boot/loader/entries/arch.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(entry)).To(ContainSubstring("initrd /intel-ucode.img\ninitrd /initramfs-linux.img"))
			Expect(string(entry)).To(ContainSubstring("options root=UUID=5f6e2a14-10cf-4a7b-9a3e-b94f1e2c0c11 rw"))

			fallback, err := d.FS.ReadFile("/mnt/boot/loader/entries/arch-fallback.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(fallback)).To(ContainSubstring("initramfs-linux-fallback.img"))
		})

		It("uses the EFI grub target under UEFI when grub is chosen", func() {
			d.Session.Config.Bootloader = types.BootGrub
			Expect(Bootloader(d)).To(Succeed())
			Expect(chroot.Called("grub-install --target=x86_64-efi")).To(BeTrue())
		})
	})
})
