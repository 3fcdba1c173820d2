// Package update is the Update Installer (spec.md §4.9): fetch, verify,
// back up, install, and roll back content packages from a closed set of
// authorised hosts.
package update

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/config"
	"github.com/DDT-TDD/quizdd-engine/internal/crypto"
	"github.com/DDT-TDD/quizdd-engine/internal/httputil"
	"github.com/DDT-TDD/quizdd-engine/internal/logger"
)

// fetchTimeout is the overall network budget for a manifest or package
// fetch (spec.md §5's "30-second overall budget").
const fetchTimeout = 30 * time.Second

// currentVersionFile is the atomically-updated marker spec.md §4.9
// describes as "the version marker is the last byte written".
const currentVersionFile = "CURRENT_VERSION"

// UpdateInfo describes one available content package, as served by a
// repository's manifest.json.
type UpdateInfo struct {
	Version      string `json:"version"`
	Description  string `json:"description"`
	DownloadURL  string `json:"download_url"`
	SignatureHex string `json:"signature_hex"`
	SizeBytes    int64  `json:"size_bytes"`
	ChecksumHex  string `json:"checksum_hex"`
	Required     bool   `json:"required"`
}

// Installer fetches, verifies, and installs content packages.
type Installer struct {
	client *http.Client
	gate   *crypto.Gate
	log    *logger.Logger

	allowedHosts    map[string]struct{}
	contentDir      string
	backupDir       string
	backupRetention time.Duration
}

// New builds an Installer from cfg. base may be nil; a fresh client
// capped at fetchTimeout is used either way.
func New(cfg *config.Config, gate *crypto.Gate, base *http.Client, log *logger.Logger) *Installer {
	hosts := make(map[string]struct{}, len(cfg.AllowedUpdateHosts))
	for _, h := range cfg.AllowedUpdateHosts {
		hosts[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Installer{
		client:          httputil.CopyHTTPClientWithTimeout(base, fetchTimeout, false),
		gate:            gate,
		log:             log,
		allowedHosts:    hosts,
		contentDir:      cfg.ContentDir,
		backupDir:       cfg.BackupDir,
		backupRetention: cfg.BackupRetention,
	}
}

// validateURL rejects anything not served over HTTPS from an allowed host.
func (in *Installer) validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperr.InvalidInput("malformed update URL")
	}
	if u.Scheme != "https" {
		return nil, apperr.Security("update URLs must use https")
	}
	if _, ok := in.allowedHosts[strings.ToLower(u.Hostname())]; !ok {
		return nil, apperr.Security(fmt.Sprintf("host %q is not in the allowed update host list", u.Hostname()))
	}
	return u, nil
}

// CheckForUpdates fetches manifest.json from every configured repository,
// merges the results, de-duplicates by version, and returns them sorted
// ascending by version (spec.md §4.9).
func (in *Installer) CheckForUpdates(ctx context.Context) ([]UpdateInfo, error) {
	byVersion := make(map[string]UpdateInfo)

	for host := range in.allowedHosts {
		manifestURL := fmt.Sprintf("https://%s/manifest.json", host)
		entries, err := in.fetchManifest(ctx, manifestURL)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			byVersion[entry.Version] = entry
		}
	}

	out := make([]UpdateInfo, 0, len(byVersion))
	for _, info := range byVersion {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return compareVersions(out[i].Version, out[j].Version) < 0 })
	return out, nil
}

func (in *Installer) fetchManifest(ctx context.Context, manifestURL string) ([]UpdateInfo, error) {
	u, err := in.validateURL(manifestURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.UpdateFailed("could not build manifest request", err)
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return nil, apperr.UpdateFailed("manifest fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.UpdateFailed(fmt.Sprintf("manifest fetch returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.UpdateFailed("could not read manifest body", err)
	}

	entries, err := parseManifest(body)
	if err != nil {
		return nil, apperr.UpdateFailed("could not parse manifest", err)
	}
	return entries, nil
}

// compareVersions orders dot-separated numeric version strings
// component-wise, falling back to a lexicographic compare when a
// component isn't numeric.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			if an != bn {
				return an - bn
			}
			continue
		}
		if av != bv {
			return strings.Compare(av, bv)
		}
	}
	return 0
}

// DownloadAndInstall fetches info's package, verifies its checksum and
// signature, and installs it atomically. Any failure rolls back to the
// most recent backup and returns the original error (spec.md §4.9).
func (in *Installer) DownloadAndInstall(ctx context.Context, info UpdateInfo) error {
	if err := in.CreateBackup(); err != nil {
		return err
	}

	data, err := in.download(ctx, info.DownloadURL)
	if err != nil {
		return in.rollbackAfter(err)
	}

	if !crypto.VerifyChecksum(data, info.ChecksumHex) {
		return in.rollbackAfter(apperr.UpdateFailed("downloaded package checksum mismatch", nil))
	}

	signature, err := hex.DecodeString(info.SignatureHex)
	if err != nil {
		return in.rollbackAfter(apperr.ContentVerification("malformed package signature"))
	}
	if in.gate == nil || !in.gate.VerifyPackageSignature(data, signature) {
		return in.rollbackAfter(apperr.ContentVerification("package signature verification failed"))
	}

	if err := in.installAtomically(info.Version, data); err != nil {
		return in.rollbackAfter(apperr.UpdateFailed("install failed", err))
	}
	return nil
}

func (in *Installer) rollbackAfter(original error) error {
	if rbErr := in.RollbackToBackup(); rbErr != nil && in.log != nil {
		in.log.WithFields(map[string]interface{}{
			"event": "update_rollback_failed",
			"cause": original.Error(),
			"error": rbErr.Error(),
		}).Warn("rollback after failed update also failed")
	}
	return original
}

func (in *Installer) download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := in.validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.UpdateFailed("could not build download request", err)
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return nil, apperr.UpdateFailed("package download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.UpdateFailed(fmt.Sprintf("package download returned status %d", resp.StatusCode), nil)
	}
	return io.ReadAll(resp.Body)
}

// installAtomically writes data into temp_<version>, swaps it into
// content/<version>, then writes the version marker last (spec.md §4.9).
func (in *Installer) installAtomically(version string, data []byte) error {
	tempDir := filepath.Join(in.contentDir, "temp_"+version)
	finalDir := filepath.Join(in.contentDir, version)

	if err := os.RemoveAll(tempDir); err != nil {
		return err
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tempDir, "pack.json"), data, 0o644); err != nil {
		return err
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return err
	}
	if err := os.Rename(tempDir, finalDir); err != nil {
		return err
	}

	return in.writeVersionMarker(version)
}

// writeVersionMarker writes the current-version marker via a temp file
// plus rename, so a reader never observes a partially-written marker.
func (in *Installer) writeVersionMarker(version string) error {
	markerPath := filepath.Join(in.contentDir, currentVersionFile)
	tempMarker := markerPath + ".tmp"
	if err := os.WriteFile(tempMarker, []byte(version), 0o644); err != nil {
		return err
	}
	return os.Rename(tempMarker, markerPath)
}

// CurrentVersion reads the version marker, if one has ever been written.
func (in *Installer) CurrentVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(in.contentDir, currentVersionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperr.IO("could not read version marker", err)
	}
	return strings.TrimSpace(string(data)), nil
}
