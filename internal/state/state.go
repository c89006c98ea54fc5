// Package state persists a search under a state directory so that an interrupted run can be
// resumed.
//
// Layout:
//
//	run.json                     run metadata, checked on resume
//	rounds/round-NNNN.config     accepted configuration after each round
//	rounds/round-NNNN.ledger.json
//	logs/                        stage logs of every validation
//	work/                        slot build directories
//	final.config, ledger.json    written when the run ends
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-version"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/pkg/log"
	"github.com/mattn/go-zglob"
)

const (
	RunFileName     = "run.json"
	LockFileName    = ".kdice.lock"
	RoundsDirName   = "rounds"
	LogsDirName     = "logs"
	WorkDirName     = "work"
	FinalConfigName = "final.config"
	LedgerName      = "ledger.json"

	dirPerm  = 0o755
	filePerm = 0o644
)

var roundFileRe = regexp.MustCompile(`round-(\d+)\.config$`)

// RunInfo identifies the inputs of a run.
type RunInfo struct {
	Started       time.Time `json:"started"`
	ID            string    `json:"id"`
	KernelSrc     string    `json:"kernel_src"`
	KernelVersion string    `json:"kernel_version,omitempty"`
	Arch          string    `json:"arch,omitempty"`
	BaselineHash  string    `json:"baseline_hash"`
}

// Store is an opened state directory. It holds an exclusive lock until Close.
type Store struct {
	logger log.Logger
	lock   *flock.Flock
	graph  *kconfig.Graph
	dir    string
}

// Open locks the state directory, creating it when needed. g is used to write and read the
// round configurations.
func Open(l log.Logger, dir string, g *kconfig.Graph) (*Store, error) {
	for _, sub := range []string{RoundsDirName, LogsDirName, WorkDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), dirPerm); err != nil {
			return nil, errors.New(err)
		}
	}

	lock := flock.New(filepath.Join(dir, LockFileName))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.New(err)
	}

	if !locked {
		return nil, errors.New(LockedError{Dir: dir})
	}

	l.Debugf("Locked state directory %s", dir)

	return &Store{logger: l, lock: lock, graph: g, dir: dir}, nil
}

// Close releases the lock.
func (store *Store) Close() error {
	if err := store.lock.Unlock(); err != nil {
		return errors.New(err)
	}

	return nil
}

// Dir returns the state directory.
func (store *Store) Dir() string {
	return store.dir
}

// LogDir returns the directory of the stage logs.
func (store *Store) LogDir() string {
	return filepath.Join(store.dir, LogsDirName)
}

// WorkDir returns the directory of the slot build directories.
func (store *Store) WorkDir() string {
	return filepath.Join(store.dir, WorkDirName)
}

// Init records the run metadata. When the directory holds an earlier run with different
// inputs, a ResumeMismatchError is returned unless fresh is set; fresh discards the earlier
// rounds.
func (store *Store) Init(info RunInfo, fresh bool) (*RunInfo, error) {
	var persisted RunInfo

	found, err := readJSON(filepath.Join(store.dir, RunFileName), &persisted)
	if err != nil {
		return nil, err
	}

	switch {
	case fresh:
		if err := store.reset(); err != nil {
			return nil, err
		}
	case found:
		if err := checkResume(&persisted, &info); err != nil {
			return nil, err
		}

		store.logger.Infof("Resuming run %s started %s", persisted.ID, persisted.Started.Format(time.RFC3339))

		return &persisted, nil
	}

	if err := writeJSON(filepath.Join(store.dir, RunFileName), info); err != nil {
		return nil, err
	}

	return &info, nil
}

func checkResume(persisted, current *RunInfo) error {
	if persisted.BaselineHash != current.BaselineHash {
		return errors.New(ResumeMismatchError{Field: "baseline", Persisted: persisted.BaselineHash, Current: current.BaselineHash})
	}

	if persisted.KernelVersion == "" || current.KernelVersion == "" {
		return nil
	}

	persistedVer, err := version.NewVersion(persisted.KernelVersion)
	if err != nil {
		return errors.New(err)
	}

	currentVer, err := version.NewVersion(current.KernelVersion)
	if err != nil {
		return errors.New(err)
	}

	if !persistedVer.Equal(currentVer) {
		return errors.New(ResumeMismatchError{Field: "kernel version", Persisted: persisted.KernelVersion, Current: current.KernelVersion})
	}

	return nil
}

func (store *Store) reset() error {
	for _, name := range []string{RoundsDirName, RunFileName, FinalConfigName, LedgerName} {
		if err := os.RemoveAll(filepath.Join(store.dir, name)); err != nil {
			return errors.New(err)
		}
	}

	if err := os.MkdirAll(filepath.Join(store.dir, RoundsDirName), dirPerm); err != nil {
		return errors.New(err)
	}

	return nil
}

// RoundConfigPath returns the path of the configuration accepted in the given round.
func (store *Store) RoundConfigPath(round int) string {
	return filepath.Join(store.dir, RoundsDirName, fmt.Sprintf("round-%04d.config", round))
}

// RoundLedgerPath returns the path of the ledger of the given round.
func (store *Store) RoundLedgerPath(round int) string {
	return filepath.Join(store.dir, RoundsDirName, fmt.Sprintf("round-%04d.ledger.json", round))
}

// Latest returns the highest persisted round and its configuration. Round 0 and a nil
// assignment are returned when nothing was persisted.
func (store *Store) Latest() (int, *kconfig.Assignment, error) {
	matches, err := zglob.Glob(filepath.Join(store.dir, RoundsDirName, "round-*.config"))
	if err != nil && !os.IsNotExist(err) {
		return 0, nil, errors.New(err)
	}

	latest, path := 0, ""

	for _, match := range matches {
		groups := roundFileRe.FindStringSubmatch(match)
		if groups == nil {
			continue
		}

		round, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}

		if round > latest {
			latest, path = round, match
		}
	}

	if path == "" {
		return 0, nil, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, errors.New(err)
	}

	a, err := kconfig.ParseDotConfig(store.graph, path, src)
	if err != nil {
		return 0, nil, err
	}

	return latest, a, nil
}

func readJSON(path string, val any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, errors.New(err)
	}

	if err := json.Unmarshal(data, val); err != nil {
		return false, errors.Errorf("reading %s: %w", path, err)
	}

	return true, nil
}

func writeJSON(path string, val any) error {
	data, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return errors.New(err)
	}

	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.New(err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck

		return errors.New(err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return errors.New(err)
	}

	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return errors.New(err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.New(err)
	}

	return nil
}
