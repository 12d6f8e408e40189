package session

// StageID identifies one of the eight fixed installation stages. The order
// below is display order only; execution order is whatever the preconditions
// allow.
type StageID string

const (
	StageKeyboard     StageID = "keyboard"
	StageNetwork      StageID = "network"
	StagePartitioning StageID = "partitioning"
	StageBaseInstall  StageID = "base-install"
	StageConfigure    StageID = "configure"
	StageUsers        StageID = "users"
	StagePackages     StageID = "packages"
	StageBootloader   StageID = "bootloader"
)

// AllStages returns the fixed stage sequence in display order.
func AllStages() []StageID {
	return []StageID{
		StageKeyboard,
		StageNetwork,
		StagePartitioning,
		StageBaseInstall,
		StageConfigure,
		StageUsers,
		StagePackages,
		StageBootloader,
	}
}

var stageTitles = map[StageID]string{
	StageKeyboard:     "Keyboard layout",
	StageNetwork:      "Network",
	StagePartitioning: "Partition disk",
	StageBaseInstall:  "Install base system",
	StageConfigure:    "Configure system",
	StageUsers:        "Users and passwords",
	StagePackages:     "Extra packages and services",
	StageBootloader:   "Bootloader",
}

// Title returns the operator-facing name of a stage.
func (id StageID) Title() string {
	return stageTitles[id]
}

// StageStatus is one row of the progress summary driving the menu.
type StageStatus struct {
	ID        StageID
	Title     string
	Completed bool
}

// CanRun evaluates the stage's precondition against the current session
// state. Preconditions are pure predicates; no collaborator is consulted.
// The returned reason is empty when the stage may run.
func (s *Session) CanRun(id StageID) (bool, string) {
	switch id {
	case StageBaseInstall:
		if !s.RootMounted {
			return false, "the target root filesystem is not mounted; run partitioning first"
		}
	case StageConfigure, StageUsers:
		if !s.Completed(StageBaseInstall) {
			return false, "the base system is not installed yet"
		}
	case StagePackages:
		if !s.Completed(StageUsers) {
			return false, "no user has been created yet"
		}
	case StageBootloader:
		if !s.Completed(StageConfigure) {
			return false, "the system is not configured yet"
		}
		if s.RootUUID == "" {
			return false, "the root partition UUID is unknown; run partitioning first"
		}
	}
	return true, ""
}

// MarkComplete records a successful stage run. Idempotent.
func (s *Session) MarkComplete(id StageID) {
	s.done[id] = true
}

// MarkFailed clears the completion flag after a failed re-run. Idempotent;
// other stages' flags are untouched.
func (s *Session) MarkFailed(id StageID) {
	s.done[id] = false
}

// Completed reports whether the stage's last run succeeded.
func (s *Session) Completed(id StageID) bool {
	return s.done[id]
}

// Progress returns the ordered per-stage completion summary.
func (s *Session) Progress() []StageStatus {
	var out []StageStatus
	for _, id := range AllStages() {
		out = append(out, StageStatus{ID: id, Title: id.Title(), Completed: s.done[id]})
	}
	return out
}
