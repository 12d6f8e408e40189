package types

// PartitionRole is what a planned partition is for.
type PartitionRole string

const (
	RoleEFI  PartitionRole = "efi"
	RoleSwap PartitionRole = "swap"
	RoleRoot PartitionRole = "root"
)

// TableKind is the partition table style, derived from the firmware mode.
type TableKind string

const (
	TableGPT TableKind = "gpt"
	TableDOS TableKind = "dos"
)

// PlannedPartition is one entry of a computed disk layout.
// SizeMiB 0 means "span the remaining space".
type PlannedPartition struct {
	Role    PartitionRole `json:"role" yaml:"role"`
	Number  int           `json:"number" yaml:"number"`
	Device  string        `json:"device" yaml:"device"`
	SizeMiB int64         `json:"size_mib" yaml:"size_mib"`
}

// DiskLayout is the computed plan for one target disk. It is recomputed every
// time the partitioning stage runs and never persisted.
type DiskLayout struct {
	TargetDisk      string             `json:"target_disk" yaml:"target_disk"`
	PartitionPrefix string             `json:"partition_prefix" yaml:"partition_prefix"`
	SwapBytes       int64              `json:"swap_bytes" yaml:"swap_bytes"`
	RootFilesystem  Filesystem         `json:"root_filesystem" yaml:"root_filesystem"`
	Table           TableKind          `json:"table" yaml:"table"`
	Partitions      []PlannedPartition `json:"partitions" yaml:"partitions"`
}

func (l DiskLayout) byRole(role PartitionRole) *PlannedPartition {
	for i := range l.Partitions {
		if l.Partitions[i].Role == role {
			return &l.Partitions[i]
		}
	}
	return nil
}

func (l DiskLayout) Root() *PlannedPartition { return l.byRole(RoleRoot) }
func (l DiskLayout) Swap() *PlannedPartition { return l.byRole(RoleSwap) }
func (l DiskLayout) EFI() *PlannedPartition  { return l.byRole(RoleEFI) }

// DiskInfo is one candidate installation target as reported by the disk
// listing query.
type DiskInfo struct {
	Device string `json:"device" yaml:"device"`
	Size   string `json:"size" yaml:"size"`
}
