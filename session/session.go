// Package session holds the process-wide state of one installation run: the
// operator configuration, the detected firmware mode, and the stage tracker
// gating what may run next.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/types"
)

// Session is created once at process start and lives until exit. Stage
// executors mutate only their own slice of it.
type Session struct {
	Firmware       types.FirmwareMode
	Config         types.Config
	MountRoot      string
	TranscriptPath string

	// Filled by the partitioning stage, consumed by later stages.
	RootPartition string
	EFIPartition  string
	SwapPartition string
	RootUUID      string
	RootMounted   bool

	// Filled by the base install stage, consumed by the bootloader stage.
	Microcode string

	NetworkOnline bool

	done map[StageID]bool
}

func New(fw types.FirmwareMode, transcriptPath string) *Session {
	return &Session{
		Firmware:       fw,
		MountRoot:      constants.MountRoot,
		TranscriptPath: transcriptPath,
		done:           map[StageID]bool{},
	}
}

// LoadConfig hydrates the session config from a key/value assignment file.
// Keys that are absent simply stay unset and fall back to prompts; invalid
// values are aggregated and reported together.
func (s *Session) LoadConfig(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var errs *multierror.Error
	boolKey := func(key string, dst **bool) {
		raw, ok := values[key]
		if !ok {
			return
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
			return
		}
		*dst = &v
	}

	cfg := &s.Config
	if v, ok := values["HOSTNAME"]; ok {
		cfg.Hostname = v
	}
	if v, ok := values["TIMEZONE"]; ok {
		cfg.Timezone = v
	}
	if v, ok := values["LOCALE"]; ok {
		cfg.Locale = v
	}
	if v, ok := values["KEYMAP"]; ok {
		cfg.Keymap = v
	}
	if v, ok := values["TARGET_DISK"]; ok {
		cfg.TargetDisk = v
	}
	if v, ok := values["SWAP_SIZE"]; ok {
		cfg.SwapSize = v
	}
	if v, ok := values["ROOT_FILESYSTEM"]; ok {
		fs, err := types.ParseFilesystem(v)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			cfg.RootFilesystem = fs
		}
	}
	if v, ok := values["BOOTLOADER"]; ok {
		bl, err := types.ParseBootloader(v)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			cfg.Bootloader = bl
		}
	}
	if v, ok := values["USERNAME"]; ok {
		cfg.Username = v
	}
	if v, ok := values["ROOT_PASSWORD"]; ok {
		cfg.RootPassword = v
	}
	if v, ok := values["USER_PASSWORD"]; ok {
		cfg.UserPassword = v
	}
	if v, ok := values["EXTRA_PACKAGES"]; ok {
		cfg.ExtraPackages = strings.Fields(v)
	}
	boolKey("BASE_DEVEL", &cfg.BaseDevel)
	boolKey("WIFI_TOOLS", &cfg.WifiTools)
	boolKey("MULTILIB", &cfg.Multilib)
	boolKey("ENABLE_SSH", &cfg.EnableSSH)

	return errs.ErrorOrNil()
}
