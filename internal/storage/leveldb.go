package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	claims "vitae/internal/claims/models"
	reward "vitae/internal/reward/models"
	id "vitae/pkg/domain"
	"vitae/pkg/platform/sentinel"
)

// Key prefixes partition one LevelDB file into logical pools, one leading
// byte per pool. Entries within a pool sort by the remainder of the key,
// which the append-only pools exploit by keying on big-endian positions.
const (
	prefixClaim       byte = 'C' // fingerprint -> JSON claim record
	prefixIndexEntry  byte = 'A' // account|category|position -> fingerprint
	prefixIndexCount  byte = 'N' // account|category -> entry count
	prefixLedgerEntry byte = 'L' // position -> fingerprint
	prefixLedgerCount byte = 'P' // -> ledger length
	prefixReward      byte = 'R' // -> JSON reward settings
)

// Level is the embedded single-file backend. Writers stage everything and
// commit one batch; readers run against point-in-time snapshots.
type Level struct {
	writeMu sync.Mutex
	db      *leveldb.DB
}

// OpenLevel opens (or creates) the database directory.
func OpenLevel(path string) (*Level, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &Level{db: db}, nil
}

// levelReader is satisfied by *leveldb.DB and *leveldb.Snapshot, letting
// transactions share read paths.
type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Has(key []byte, ro *opt.ReadOptions) (bool, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

func (l *Level) View(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error {
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()
	return fn(ctx, &levelReadTx{reader: snap})
}

func (l *Level) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	tx := &levelTx{
		levelReadTx:  levelReadTx{reader: l.db},
		stagedClaims: make(map[id.Fingerprint]claims.Claim),
		stagedIndex:  make(map[indexKey][]id.Fingerprint),
	}
	tx.levelReadTx.staged = tx

	if err := fn(ctx, tx); err != nil {
		return err
	}

	batch, err := tx.buildBatch()
	if err != nil {
		return err
	}
	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb write batch: %w", err)
	}
	return nil
}

func (l *Level) Health(context.Context) error {
	if l.db == nil {
		return sentinel.ErrUnavailable
	}
	return nil
}

func (l *Level) Close() error {
	return l.db.Close()
}

// --- keys ---

func claimKey(fp id.Fingerprint) []byte {
	return append([]byte{prefixClaim}, fp[:]...)
}

func indexEntryKey(account id.AccountID, category claims.Category, position uint64) []byte {
	key := indexScanPrefix(account, category)
	var pos [8]byte
	binary.BigEndian.PutUint64(pos[:], position)
	return append(key, pos[:]...)
}

func indexScanPrefix(account id.AccountID, category claims.Category) []byte {
	key := make([]byte, 0, 1+16+1+8)
	key = append(key, prefixIndexEntry)
	key = append(key, account.Bytes()...)
	return append(key, byte(category))
}

func indexCountKey(account id.AccountID, category claims.Category) []byte {
	key := make([]byte, 0, 1+16+1)
	key = append(key, prefixIndexCount)
	key = append(key, account.Bytes()...)
	return append(key, byte(category))
}

func ledgerEntryKey(position uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixLedgerEntry
	binary.BigEndian.PutUint64(key[1:], position)
	return key
}

// --- reads ---

type levelReadTx struct {
	reader levelReader
	staged *levelTx
}

func (r *levelReadTx) Claim(fp id.Fingerprint) (claims.Claim, bool, error) {
	if r.staged != nil {
		if c, ok := r.staged.stagedClaims[fp]; ok {
			return cloneClaim(c), true, nil
		}
	}
	raw, err := r.reader.Get(claimKey(fp), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return claims.Claim{}, false, nil
	}
	if err != nil {
		return claims.Claim{}, false, fmt.Errorf("leveldb get claim: %w", err)
	}
	var c claims.Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return claims.Claim{}, false, fmt.Errorf("decode claim record: %w", err)
	}
	return c, true, nil
}

func (r *levelReadTx) AccountClaims(account id.AccountID, category claims.Category) ([]id.Fingerprint, error) {
	var out []id.Fingerprint
	iter := r.reader.NewIterator(util.BytesPrefix(indexScanPrefix(account, category)), nil)
	for iter.Next() {
		fp, err := fingerprintFromValue(iter.Value())
		if err != nil {
			iter.Release()
			return nil, err
		}
		out = append(out, fp)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb scan account index: %w", err)
	}
	if r.staged != nil {
		out = append(out, r.staged.stagedIndex[indexKey{account: account, category: category}]...)
	}
	return out, nil
}

func (r *levelReadTx) AccountClaimCount(account id.AccountID, category claims.Category) (int, error) {
	count, err := r.readCount(indexCountKey(account, category))
	if err != nil {
		return 0, err
	}
	if r.staged != nil {
		count += uint64(len(r.staged.stagedIndex[indexKey{account: account, category: category}]))
	}
	return int(count), nil
}

func (r *levelReadTx) LedgerClaims() ([]claims.Claim, error) {
	var out []claims.Claim
	appendRecord := func(fp id.Fingerprint) error {
		c, ok, err := r.Claim(fp)
		if err != nil {
			return err
		}
		if !ok {
			return sentinel.ErrInvalidState
		}
		out = append(out, c)
		return nil
	}

	iter := r.reader.NewIterator(util.BytesPrefix([]byte{prefixLedgerEntry}), nil)
	for iter.Next() {
		fp, err := fingerprintFromValue(iter.Value())
		if err != nil {
			iter.Release()
			return nil, err
		}
		if err := appendRecord(fp); err != nil {
			iter.Release()
			return nil, err
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb scan ledger: %w", err)
	}

	if r.staged != nil {
		for _, fp := range r.staged.stagedLedger {
			if err := appendRecord(fp); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *levelReadTx) RewardSettings() (reward.Settings, error) {
	if r.staged != nil && r.staged.stagedReward != nil {
		return *r.staged.stagedReward, nil
	}
	raw, err := r.reader.Get([]byte{prefixReward}, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return reward.Settings{}, nil
	}
	if err != nil {
		return reward.Settings{}, fmt.Errorf("leveldb get reward settings: %w", err)
	}
	var s reward.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return reward.Settings{}, fmt.Errorf("decode reward settings: %w", err)
	}
	return s, nil
}

func (r *levelReadTx) readCount(key []byte) (uint64, error) {
	raw, err := r.reader.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("leveldb get counter: %w", err)
	}
	if len(raw) < 8 {
		return 0, fmt.Errorf("truncated counter record: %x", raw)
	}
	return binary.BigEndian.Uint64(raw[:8]), nil
}

func fingerprintFromValue(value []byte) (id.Fingerprint, error) {
	if len(value) != id.FingerprintSize {
		return id.NilFingerprint, fmt.Errorf("malformed fingerprint entry of %d bytes", len(value))
	}
	var fp id.Fingerprint
	copy(fp[:], value)
	return fp, nil
}

// --- writes ---

type levelTx struct {
	levelReadTx
	stagedClaims map[id.Fingerprint]claims.Claim
	stagedIndex  map[indexKey][]id.Fingerprint
	stagedLedger []id.Fingerprint
	stagedReward *reward.Settings
}

func (t *levelTx) InsertClaim(c claims.Claim) error {
	if _, ok := t.stagedClaims[c.Fingerprint]; ok {
		return sentinel.ErrAlreadyExists
	}
	exists, err := t.reader.Has(claimKey(c.Fingerprint), nil)
	if err != nil {
		return fmt.Errorf("leveldb has claim: %w", err)
	}
	if exists {
		return sentinel.ErrAlreadyExists
	}
	t.stagedClaims[c.Fingerprint] = cloneClaim(c)
	return nil
}

func (t *levelTx) UpdateClaim(c claims.Claim) error {
	if _, ok := t.stagedClaims[c.Fingerprint]; !ok {
		exists, err := t.reader.Has(claimKey(c.Fingerprint), nil)
		if err != nil {
			return fmt.Errorf("leveldb has claim: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	t.stagedClaims[c.Fingerprint] = cloneClaim(c)
	return nil
}

func (t *levelTx) AppendAccountClaim(account id.AccountID, category claims.Category, fp id.Fingerprint) error {
	key := indexKey{account: account, category: category}
	t.stagedIndex[key] = append(t.stagedIndex[key], fp)
	return nil
}

func (t *levelTx) AppendLedger(fp id.Fingerprint) error {
	t.stagedLedger = append(t.stagedLedger, fp)
	return nil
}

func (t *levelTx) PutRewardSettings(s reward.Settings) error {
	t.stagedReward = &s
	return nil
}

// buildBatch turns the staged state into one atomic write, assigning
// append positions from the stored counters.
func (t *levelTx) buildBatch() (*leveldb.Batch, error) {
	batch := new(leveldb.Batch)

	for fp, c := range t.stagedClaims {
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode claim record: %w", err)
		}
		batch.Put(claimKey(fp), raw)
	}

	for key, fps := range t.stagedIndex {
		base, err := t.readCount(indexCountKey(key.account, key.category))
		if err != nil {
			return nil, err
		}
		for i, fp := range fps {
			entry := fp
			batch.Put(indexEntryKey(key.account, key.category, base+uint64(i)), entry[:])
		}
		var count [8]byte
		binary.BigEndian.PutUint64(count[:], base+uint64(len(fps)))
		batch.Put(indexCountKey(key.account, key.category), count[:])
	}

	if len(t.stagedLedger) > 0 {
		base, err := t.readCount([]byte{prefixLedgerCount})
		if err != nil {
			return nil, err
		}
		for i, fp := range t.stagedLedger {
			entry := fp
			batch.Put(ledgerEntryKey(base+uint64(i)), entry[:])
		}
		var count [8]byte
		binary.BigEndian.PutUint64(count[:], base+uint64(len(t.stagedLedger)))
		batch.Put([]byte{prefixLedgerCount}, count[:])
	}

	if t.stagedReward != nil {
		raw, err := json.Marshal(*t.stagedReward)
		if err != nil {
			return nil, fmt.Errorf("encode reward settings: %w", err)
		}
		batch.Put([]byte{prefixReward}, raw)
	}

	return batch, nil
}
