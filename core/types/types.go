// Package types holds the data model shared across the engine: targets,
// groups, OS info, tasks, and module results. See spec §3.
package types

import (
	"fmt"
	"time"
)

// ConnectionKind selects the transport a Target uses.
type ConnectionKind string

const (
	ConnectionSSH   ConnectionKind = "ssh"
	ConnectionLocal ConnectionKind = "local"
)

// Target is a named connection descriptor. Once built by the resolver's
// normalization pass it is treated as immutable.
type Target struct {
	Name       string
	Connection ConnectionKind

	// SSH transport fields.
	Hostname           string
	Port               int
	Username           string
	Password           Secret
	PrivateKey         string // path or inline PEM
	PrivateKeyPassword Secret
	KnownHostsPath     string // empty falls back to an insecure, logged warning

	Variables   map[string]any
	Environment map[string]string
}

// Group is a named set of host names sharing settings/variables/
// environment, optionally nesting other groups via Children.
type Group struct {
	Name        string
	Hosts       map[string]bool
	Settings    map[string]any
	Variables   map[string]any
	Environment map[string]string
	Children    []string
}

// OSFamily is a closed enumeration of supported operating system
// families, normalized from whatever a probe returns.
type OSFamily string

const (
	FamilyLinux   OSFamily = "linux"
	FamilyDarwin  OSFamily = "darwin"
	FamilyWindows OSFamily = "windows"
	FamilyFreeBSD OSFamily = "freebsd"
	FamilyOpenBSD OSFamily = "openbsd"
	FamilyNetBSD  OSFamily = "netbsd"
	FamilyAIX     OSFamily = "aix"
	FamilySolaris OSFamily = "solaris"
	FamilyUnknown OSFamily = "unknown"
)

// Arch is a closed enumeration of supported CPU architectures.
type Arch string

const (
	ArchAMD64   Arch = "x86_64"
	ArchARM64   Arch = "arm64"
	ArchARMv7   Arch = "armv7"
	ArchI386    Arch = "i386"
	ArchUnknown Arch = "unknown"
)

// OsSource records which probe produced an OsInfo.
type OsSource string

const (
	SourcePOSIX      OsSource = "posix"
	SourcePowerShell OsSource = "powershell"
	SourceUnknown    OsSource = "unknown"
)

// OsInfo is the normalized descriptor of a provider's target, produced by
// Provider.GetOsInfo.
type OsInfo struct {
	Family     OSFamily
	Arch       Arch
	Kernel     string
	DistroID   string
	VersionID  string
	PrettyName string
	Source     OsSource
}

// Task is one entry in a task file: a selection of targets, optional
// variables, exactly one module payload, and zero or more control keys.
type Task struct {
	Name      string
	Targets   []string
	Variables map[string]any

	// Module is the resolved module name (e.g. "copy", "apt").
	Module string
	// Params is the module's raw option bag (post control-key-stripping).
	Params map[string]any

	// Control keys. A zero value means "not configured".
	Loop          any // list, or expression string evaluating to one
	LoopVar       string
	IndexVar      string
	LoopPause     time.Duration
	LoopBreakWhen string
	LoopLabel     string

	When string

	Register string

	Until   string
	Retries int
	Delay   time.Duration

	Environment any // map[string]string or template expression string

	Become       bool
	BecomeUser   string
	BecomePass   Secret
	AllowFailure bool
}

// ModuleResult (ModuleCommonReturn) is the normalized outcome of one
// module invocation, plus arbitrary module-specific keys in Extra.
type ModuleResult struct {
	Changed bool
	Failed  bool
	Skipped bool
	Msg     string
	Stdout  string
	Stderr  string

	Start time.Time
	End   time.Time
	Delta string // "H:MM:SS.mmm"

	Attempts int
	Retries  int

	Extra map[string]any
}

// DeltaString formats d as the spec's "H:MM:SS.mmm" delta.
func DeltaString(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := d.Milliseconds()
	ms := total % 1000
	totalSec := total / 1000
	s := totalSec % 60
	totalMin := totalSec / 60
	m := totalMin % 60
	h := totalMin / 60
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}
