package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Collection is the subset of a parsed manifest that import_collection
// persists. The manifest JSON parser (internal/manifest) builds this from
// the wire format described in §6; the store does not parse JSON itself.
type Collection struct {
	Name     string
	Domain   string
	Version  string
	Mods     []Mod
	Archives []Archive
	Rules    []Rule
	Plugins  []Plugin
}

// ImportCollection idempotently upserts every mod, archive, rule, plugin,
// and metadata entry in one transaction, as required by §4.1.
func (s *Store) ImportCollection(ctx context.Context, c Collection) error {
	op := "store.ImportCollection"
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for k, v := range map[string]string{
			"collectionName": c.Name,
			"domainName":     c.Domain,
			"version":        c.Version,
		} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO metadata(key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
				return xerrors.New(xerrors.KindConfig, op, fmt.Errorf("metadata %s: %w", k, err))
			}
		}

		for _, a := range c.Archives {
			srcJSON, err := marshalSource(a.Source)
			if err != nil {
				return xerrors.New(xerrors.KindConfig, op, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO archives(hash, filename, expected_size, source_json, status)
				 VALUES (?, ?, ?, ?, 'pending')
				 ON CONFLICT(hash) DO UPDATE SET
				   filename = excluded.filename,
				   expected_size = excluded.expected_size,
				   source_json = excluded.source_json`,
				a.Hash, a.Filename, a.ExpectedSize, srcJSON); err != nil {
				return xerrors.New(xerrors.KindConfig, op, fmt.Errorf("archive %s: %w", a.Hash, err))
			}
		}

		for _, m := range c.Mods {
			if m.ArchiveHash != "" {
				var exists int
				if err := tx.QueryRowContext(ctx, `SELECT 1 FROM archives WHERE hash = ?`, m.ArchiveHash).Scan(&exists); err == sql.ErrNoRows {
					return xerrors.New(xerrors.KindFatalInvariant, op,
						fmt.Errorf("mod %q references archive hash %q not present in archive table (I1)", m.LogicalFilename, m.ArchiveHash))
				} else if err != nil {
					return xerrors.New(xerrors.KindConfig, op, err)
				}
			}
			srcJSON, err := marshalSource(m.Source)
			if err != nil {
				return xerrors.New(xerrors.KindConfig, op, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mods(logical_filename, display_name, folder_name, source_json, archive_hash, phase, optional, scripted, choices_json, patches_json, status)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')
				 ON CONFLICT(logical_filename) DO UPDATE SET
				   display_name = excluded.display_name,
				   folder_name = excluded.folder_name,
				   source_json = excluded.source_json,
				   archive_hash = excluded.archive_hash,
				   phase = excluded.phase,
				   optional = excluded.optional,
				   scripted = excluded.scripted,
				   choices_json = excluded.choices_json,
				   patches_json = excluded.patches_json`,
				m.LogicalFilename, m.DisplayName, m.FolderName, srcJSON, m.ArchiveHash, m.Phase, boolToInt(m.Optional), boolToInt(m.Scripted), m.Choices, m.Patches); err != nil {
				return xerrors.New(xerrors.KindConfig, op, fmt.Errorf("mod %q: %w", m.LogicalFilename, err))
			}
		}

		for _, r := range c.Rules {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mod_rules(kind, source_filename, source_md5, reference_filename, reference_md5)
				 VALUES (?, ?, ?, ?, ?)`,
				r.Kind, r.SourceRef.Filename, r.SourceRef.MD5, r.RefRef.Filename, r.RefRef.MD5); err != nil {
				return xerrors.New(xerrors.KindConfig, op, fmt.Errorf("rule: %w", err))
			}
		}

		seen := map[string]bool{}
		for i, p := range c.Plugins {
			norm := normalizePluginName(p.Filename)
			if seen[norm] {
				return xerrors.New(xerrors.KindFatalInvariant, op,
					fmt.Errorf("plugin %q appears more than once (I3)", p.Filename))
			}
			seen[norm] = true
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO plugins(filename, filename_normalized, enabled, insertion_index)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(filename_normalized) DO UPDATE SET
				   filename = excluded.filename,
				   enabled = excluded.enabled,
				   insertion_index = excluded.insertion_index`,
				p.Filename, norm, boolToInt(p.Enabled), i); err != nil {
				return xerrors.New(xerrors.KindConfig, op, fmt.Errorf("plugin %q: %w", p.Filename, err))
			}
		}
		return nil
	})
}

func normalizePluginName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
