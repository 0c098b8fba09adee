package store

// SourceKind tags the variant of a mod or archive's source descriptor (§4.3
// of the design: ModRepo, DirectHttp, MultiPartCDN, CloudDriveA, CloudDriveB,
// LocalGameFile, Manual, OpaqueCloud).
type SourceKind string

const (
	SourceModRepo       SourceKind = "mod_repo"
	SourceDirectHttp    SourceKind = "direct_http"
	SourceMultiPartCDN  SourceKind = "multi_part_cdn"
	SourceCloudDriveA   SourceKind = "cloud_drive_a"
	SourceCloudDriveB   SourceKind = "cloud_drive_b"
	SourceLocalGameFile SourceKind = "local_game_file"
	SourceManual        SourceKind = "manual"
	SourceOpaqueCloud   SourceKind = "opaque_cloud"
)

// Source is the tagged-union descriptor persisted as JSON on both mod and
// archive rows.
type Source struct {
	Kind    SourceKind `json:"type"`
	ModID   string     `json:"modId,omitempty"`
	FileID  string     `json:"fileId,omitempty"`
	URL     string     `json:"url,omitempty"`
	BaseURL string     `json:"baseUrl,omitempty"`
	MD5     string     `json:"md5,omitempty"`
	Prompt  string     `json:"prompt,omitempty"`
}

// Preflight records a scripted-installer's phase-6 validation outcome (I4).
type Preflight struct {
	Validated bool   `json:"validated"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

// Mod is a single logical mod entry from the collection manifest.
type Mod struct {
	ID              int64
	LogicalFilename string
	DisplayName     string
	FolderName      string
	Source          Source
	ArchiveHash     string
	Phase           int
	Optional        bool
	Scripted        bool
	Choices         string // opaque JSON, recorded FOMOD choice set
	Patches         string // opaque JSON array of PatchRule, applied post-extraction
	LocalPath       string
	Status          Status
	LastError       string
	Preflight       Preflight
}

// PatchRule is one per-file binary delta (C9) the installer must apply to
// an already-extracted mod file, e.g. bringing a base archive's file up to
// a later official revision without re-downloading the whole file.
type PatchRule struct {
	TargetPath string `json:"targetPath"`        // path relative to the mod's extracted root
	PatchURL   string `json:"patchUrl"`           // where to fetch the bsdiff patch itself
	PatchMD5   string `json:"patchMd5,omitempty"` // expected MD5 of the patch payload
	OutputHash string `json:"outputHash,omitempty"` // sha256 of the patched result, used as the patch.Cache key
}

// Archive is a single downloadable payload, identified by content hash.
type Archive struct {
	Hash            string
	Filename        string
	ExpectedSize    int64
	Source          Source
	LocalPath       string
	Status          Status
	CachedURL       string
	CachedURLExpiry int64
}

// RuleKind enumerates mod-ordering rule kinds (§3).
type RuleKind string

const (
	RuleBefore      RuleKind = "before"
	RuleAfter       RuleKind = "after"
	RuleGroupMember RuleKind = "group-member"
	RuleAnchor      RuleKind = "anchor"
)

// Rule is a mod-ordering constraint between two mods, referenced by
// filename/md5 pair as the manifest format names them.
type Rule struct {
	ID        int64
	Kind      RuleKind
	SourceRef ModRef
	RefRef    ModRef
}

// ModRef identifies a mod by its manifest-level filename/md5, the same
// identity the ordering-rule wire format uses (§6).
type ModRef struct {
	Filename string
	MD5      string
}

// Plugin is a single load-order-managed plugin file (I3: unique, compared
// case-insensitively, stored case-preserved).
type Plugin struct {
	ID             int64
	Filename       string
	Enabled        bool
	InsertionIndex int
}

// Stats is the per-status mod count snapshot returned by GetModStats, used
// by the scheduler's Resume to decide which phase to re-enter.
type Stats struct {
	Pending     int
	Downloading int
	Downloaded  int
	Extracting  int
	Extracted   int
	Installing  int
	Installed   int
	Failed      int
	Total       int
}
