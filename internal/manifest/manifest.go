// Package manifest parses the collection manifest JSON (§6's external
// interface) into the store's Collection shape. The parser lives outside
// the job store itself, per §4.1's note that import_collection consumes an
// already-parsed manifest.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"

	semver "github.com/Masterminds/semver/v3"

	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// wireManifest mirrors the JSON shape from §6: collectionName, domainName,
// version, mods[], modRules[], plugins[]. The nested wire types also accept
// a source's url/baseUrl and a mod's scripted/patches fields.
type wireManifest struct {
	CollectionName string      `json:"collectionName"`
	DomainName     string      `json:"domainName"`
	Version        string      `json:"version"`
	Mods           []wireMod   `json:"mods"`
	ModRules       []wireRule  `json:"modRules"`
	Plugins        []wirePlug  `json:"plugins"`
}

type wireSource struct {
	Type     string `json:"type"`
	ModID    string `json:"modId"`
	FileID   string `json:"fileId"`
	FileSize int64  `json:"fileSize"`
	MD5      string `json:"md5"`
	URL      string `json:"url"`
	BaseURL  string `json:"baseUrl"`
}

type wireMod struct {
	Name            string            `json:"name"`
	FolderName      string            `json:"folderName"`
	LogicalFilename string            `json:"logicalFilename"`
	Source          wireSource        `json:"source"`
	Phase           int               `json:"phase"`
	Optional        bool              `json:"optional"`
	Scripted        bool              `json:"scripted"`
	Choices         json.RawMessage   `json:"choices,omitempty"`
	Patches         []store.PatchRule `json:"patches,omitempty"`
}

type wireRuleRef struct {
	Filename string `json:"filename"`
	MD5      string `json:"md5"`
}

type wireRule struct {
	Type      string      `json:"type"`
	Source    wireRuleRef `json:"source"`
	Reference wireRuleRef `json:"reference"`
}

type wirePlug struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

var sourceKindFromWire = map[string]store.SourceKind{
	"nexus":           store.SourceModRepo,
	"mod_repo":        store.SourceModRepo,
	"direct":          store.SourceDirectHttp,
	"direct_http":     store.SourceDirectHttp,
	"multi_part":      store.SourceMultiPartCDN,
	"multi_part_cdn":  store.SourceMultiPartCDN,
	"wabbajack_cdn":   store.SourceMultiPartCDN,
	"google_drive":    store.SourceCloudDriveA,
	"cloud_drive_a":   store.SourceCloudDriveA,
	"mediafire":       store.SourceCloudDriveB,
	"cloud_drive_b":   store.SourceCloudDriveB,
	"local_game_file": store.SourceLocalGameFile,
	"manual":          store.SourceManual,
	"opaque_cloud":    store.SourceOpaqueCloud,
}

// Parse decodes the manifest JSON from r into a store.Collection ready for
// ImportCollection. It derives one synthetic archive record per mod from
// the mod's source+expected size, matching I1's requirement that every
// referenced archive hash pre-exist; the "hash" used before download comes
// from archiveHash (the source's MD5 when the manifest gives one, else the
// mod's logical filename) since the true content hash is unknown until the
// archive is on disk (I6 verifies size, not hash, at this stage).
func Parse(r io.Reader) (store.Collection, error) {
	var w wireManifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&w); err != nil {
		return store.Collection{}, xerrors.New(xerrors.KindConfig, "manifest.Parse", fmt.Errorf("decode manifest: %w", err))
	}
	if w.Version != "" {
		if _, err := semver.NewVersion(w.Version); err != nil {
			return store.Collection{}, xerrors.New(xerrors.KindConfig, "manifest.Parse", fmt.Errorf("version %q: %w", w.Version, err))
		}
	}

	c := store.Collection{
		Name:    w.CollectionName,
		Domain:  w.DomainName,
		Version: w.Version,
	}

	for _, m := range w.Mods {
		kind := sourceKindFromWire[m.Source.Type]
		if kind == "" {
			kind = store.SourceManual
		}
		hash := archiveHash(m)
		src := store.Source{Kind: kind, ModID: m.Source.ModID, FileID: m.Source.FileID, URL: m.Source.URL, BaseURL: m.Source.BaseURL, MD5: m.Source.MD5}

		c.Archives = append(c.Archives, store.Archive{
			Hash:         hash,
			Filename:     m.LogicalFilename,
			ExpectedSize: m.Source.FileSize,
			Source:       src,
		})

		choices := ""
		if len(m.Choices) > 0 {
			choices = string(m.Choices)
		}

		patches := ""
		if len(m.Patches) > 0 {
			b, err := json.Marshal(m.Patches)
			if err != nil {
				return store.Collection{}, xerrors.New(xerrors.KindConfig, "manifest.Parse", fmt.Errorf("mod %q: encode patches: %w", m.LogicalFilename, err))
			}
			patches = string(b)
		}

		c.Mods = append(c.Mods, store.Mod{
			LogicalFilename: m.LogicalFilename,
			DisplayName:     m.Name,
			FolderName:      m.FolderName,
			Source:          src,
			ArchiveHash:     hash,
			Phase:           m.Phase,
			Optional:        m.Optional,
			Scripted:        m.Scripted,
			Choices:         choices,
			Patches:         patches,
		})
	}

	for _, r := range w.ModRules {
		c.Rules = append(c.Rules, store.Rule{
			Kind:      store.RuleKind(r.Type),
			SourceRef: store.ModRef{Filename: r.Source.Filename, MD5: r.Source.MD5},
			RefRef:    store.ModRef{Filename: r.Reference.Filename, MD5: r.Reference.MD5},
		})
	}

	for _, p := range w.Plugins {
		c.Plugins = append(c.Plugins, store.Plugin{Filename: p.Name, Enabled: p.Enabled})
	}

	return c, nil
}

// archiveHash derives the archive table's primary key for a mod before its
// true content hash is known. MD5 from the manifest is preferred since it
// is a stable, collection-wide identity; the logical filename is the
// fallback for sources (e.g. Manual) that carry no hash.
func archiveHash(m wireMod) string {
	if m.Source.MD5 != "" {
		return m.Source.MD5
	}
	return m.LogicalFilename
}
