package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mosaicgate/collector/internal/xerrors"
)

func scanMod(row interface {
	Scan(dest ...any) error
}) (Mod, error) {
	var m Mod
	var srcJSON string
	var status string
	var optional, scripted, preValidated, preValid int
	err := row.Scan(&m.ID, &m.LogicalFilename, &m.DisplayName, &m.FolderName, &srcJSON,
		&m.ArchiveHash, &m.Phase, &optional, &scripted, &m.Choices, &m.Patches, &m.LocalPath,
		&status, &m.LastError, &preValidated, &preValid, &m.Preflight.Error)
	if err != nil {
		return m, err
	}
	m.Source, err = unmarshalSource(srcJSON)
	if err != nil {
		return m, err
	}
	m.Status = Status(status)
	m.Optional = optional != 0
	m.Scripted = scripted != 0
	m.Preflight.Validated = preValidated != 0
	m.Preflight.Valid = preValid != 0
	return m, nil
}

const modColumns = `id, logical_filename, display_name, folder_name, source_json,
	archive_hash, phase, optional, scripted, choices_json, patches_json, local_path,
	status, last_error, preflight_validated, preflight_valid, preflight_error`

// GetAllMods returns every mod row, ordered by manifest insertion (id).
func (s *Store) GetAllMods(ctx context.Context) ([]Mod, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+modColumns+` FROM mods ORDER BY id`)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.GetAllMods", err)
	}
	defer rows.Close()
	var out []Mod
	for rows.Next() {
		m, err := scanMod(rows)
		if err != nil {
			return nil, xerrors.New(xerrors.KindConfig, "store.GetAllMods", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetModsByStatus returns every mod currently in status s.
func (s *Store) GetModsByStatus(ctx context.Context, st Status) ([]Mod, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+modColumns+` FROM mods WHERE status = ? ORDER BY id`, string(st))
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.GetModsByStatus", err)
	}
	defer rows.Close()
	var out []Mod
	for rows.Next() {
		m, err := scanMod(rows)
		if err != nil {
			return nil, xerrors.New(xerrors.KindConfig, "store.GetModsByStatus", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateModStatus transitions mod id to status st in its own transaction.
func (s *Store) UpdateModStatus(ctx context.Context, id int64, st Status) error {
	if !st.Valid() {
		return xerrors.New(xerrors.KindFatalInvariant, "store.UpdateModStatus", fmt.Errorf("unknown status %q", st))
	}
	_, err := s.db.ExecContext(ctx, `UPDATE mods SET status = ? WHERE id = ?`, string(st), id)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.UpdateModStatus", err)
	}
	return nil
}

// MarkModFailed transitions mod id to failed and records the cause.
func (s *Store) MarkModFailed(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx, `UPDATE mods SET status = 'failed', last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.MarkModFailed", err)
	}
	return nil
}

// SetModPreflight records a scripted installer's phase-6 preflight outcome.
func (s *Store) SetModPreflight(ctx context.Context, id int64, p Preflight) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mods SET preflight_validated = ?, preflight_valid = ?, preflight_error = ? WHERE id = ?`,
		boolToInt(p.Validated), boolToInt(p.Valid), p.Error, id)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.SetModPreflight", err)
	}
	return nil
}

// SetModLocalPath records where a mod's extracted/installed content lives
// (I2: an installed mod must have a non-empty destination folder).
func (s *Store) SetModLocalPath(ctx context.Context, id int64, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE mods SET local_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.SetModLocalPath", err)
	}
	return nil
}

func scanArchive(row interface {
	Scan(dest ...any) error
}) (Archive, error) {
	var a Archive
	var srcJSON, status string
	err := row.Scan(&a.Hash, &a.Filename, &a.ExpectedSize, &srcJSON, &a.LocalPath, &status, &a.CachedURL, &a.CachedURLExpiry)
	if err != nil {
		return a, err
	}
	a.Source, err = unmarshalSource(srcJSON)
	a.Status = Status(status)
	return a, err
}

const archiveColumns = `hash, filename, expected_size, source_json, local_path, status, cached_url, cached_url_expiry`

// GetArchivesByHashes fetches archive rows for the given hashes, skipping
// any hash with no matching row.
func (s *Store) GetArchivesByHashes(ctx context.Context, hashes []string) ([]Archive, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	qb := s.sb().Select("hash", "filename", "expected_size", "source_json", "local_path", "status", "cached_url", "cached_url_expiry").
		From("archives").Where(sq.Eq{"hash": hashes})
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.GetArchivesByHashes", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.GetArchivesByHashes", err)
	}
	defer rows.Close()
	var out []Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, xerrors.New(xerrors.KindConfig, "store.GetArchivesByHashes", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkArchiveDownloaded records a verified on-disk path for archive hash.
func (s *Store) MarkArchiveDownloaded(ctx context.Context, hash, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE archives SET status = 'downloaded', local_path = ? WHERE hash = ?`, path, hash)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.MarkArchiveDownloaded", err)
	}
	return nil
}

// MarkArchiveStatus sets an archive's status without touching its path,
// used e.g. to mark an archive pending again after a corruption delete.
func (s *Store) MarkArchiveStatus(ctx context.Context, hash string, st Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE archives SET status = ? WHERE hash = ?`, string(st), hash)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.MarkArchiveStatus", err)
	}
	return nil
}

// CacheDownloadURL persists a resolved signed URL and its unix expiry (I5).
func (s *Store) CacheDownloadURL(ctx context.Context, hash, url string, expiryUnixSeconds int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO url_cache(archive_hash, url, expiry_unix) VALUES (?, ?, ?)
		 ON CONFLICT(archive_hash) DO UPDATE SET url = excluded.url, expiry_unix = excluded.expiry_unix`,
		hash, url, expiryUnixSeconds)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "store.CacheDownloadURL", err)
	}
	return nil
}

// urlCacheSafetyMargin is the five-minute safety margin from I5/P10: an
// entry expiring within this window of "now" is treated as absent.
const urlCacheSafetyMargin = 5 * time.Minute

// GetCachedURL returns a still-fresh cached URL for hash, or ("", false) if
// there is none or it is within the five-minute safety margin of expiry.
func (s *Store) GetCachedURL(ctx context.Context, hash string) (string, bool, error) {
	var url string
	var expiry int64
	err := s.db.QueryRowContext(ctx, `SELECT url, expiry_unix FROM url_cache WHERE archive_hash = ?`, hash).Scan(&url, &expiry)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.New(xerrors.KindConfig, "store.GetCachedURL", err)
	}
	if time.Unix(expiry, 0).Before(time.Now().Add(urlCacheSafetyMargin)) {
		return "", false, nil
	}
	return url, true, nil
}

// ResetStuckMods demotes any mod left in a transient status
// (downloading/extracting/installing) to its resting predecessor, as
// required on every startup before phase scheduling resumes. Returns the
// number of mods reset. It is a left-inverse of any transient transition
// (P3): calling it twice in a row resets zero mods the second time.
func (s *Store) ResetStuckMods(ctx context.Context) (int, error) {
	total := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for transient, resting := range restingPredecessor {
			res, err := tx.ExecContext(ctx, `UPDATE mods SET status = ? WHERE status = ?`, string(resting), string(transient))
			if err != nil {
				return fmt.Errorf("reset %s: %w", transient, err)
			}
			n, _ := res.RowsAffected()
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, xerrors.New(xerrors.KindConfig, "store.ResetStuckMods", err)
	}
	return total, nil
}

// GetModStats returns per-status mod counts, the shape the original
// resume() logic inspects to decide which phase to re-enter.
func (s *Store) GetModStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM mods GROUP BY status`)
	if err != nil {
		return Stats{}, xerrors.New(xerrors.KindConfig, "store.GetModStats", err)
	}
	defer rows.Close()
	var st Stats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, xerrors.New(xerrors.KindConfig, "store.GetModStats", err)
		}
		st.Total += n
		switch Status(status) {
		case StatusPending:
			st.Pending = n
		case StatusDownloading:
			st.Downloading = n
		case StatusDownloaded:
			st.Downloaded = n
		case StatusExtracting:
			st.Extracting = n
		case StatusExtracted:
			st.Extracted = n
		case StatusInstalling:
			st.Installing = n
		case StatusInstalled:
			st.Installed = n
		case StatusFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}

// GetModRules returns every mod-ordering rule in insertion order.
func (s *Store) GetModRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, source_filename, source_md5, reference_filename, reference_md5 FROM mod_rules ORDER BY id`)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.GetModRules", err)
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var r Rule
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.SourceRef.Filename, &r.SourceRef.MD5, &r.RefRef.Filename, &r.RefRef.MD5); err != nil {
			return nil, xerrors.New(xerrors.KindConfig, "store.GetModRules", err)
		}
		r.Kind = RuleKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetPlugins returns every plugin in manifest insertion order.
func (s *Store) GetPlugins(ctx context.Context) ([]Plugin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, filename, enabled, insertion_index FROM plugins ORDER BY insertion_index`)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.GetPlugins", err)
	}
	defer rows.Close()
	var out []Plugin
	for rows.Next() {
		var p Plugin
		var enabled int
		if err := rows.Scan(&p.ID, &p.Filename, &enabled, &p.InsertionIndex); err != nil {
			return nil, xerrors.New(xerrors.KindConfig, "store.GetPlugins", err)
		}
		p.Enabled = enabled != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetMetadata returns a single metadata value, or ("", false) if unset.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.New(xerrors.KindConfig, "store.GetMetadata", err)
	}
	return v, true, nil
}
