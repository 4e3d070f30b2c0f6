// Package store persists one wallet record per chain and the per-chain
// transaction history journal.
package store

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// Store errors.
var (
	ErrNotFound         = errors.New("wallet not found")
	ErrAlreadyExists    = errors.New("wallet already exists")
	ErrCorrupt          = errors.New("wallet file is corrupt")
	ErrWrongPassword    = wallet.ErrWrongPassword
	ErrPasswordRequired = errors.New("wallet is encrypted; password required")
)

// FileName is the wallet record file inside a chain directory.
const FileName = "wallet_info.json"

const recordVersion = 1

// recordFile is the on-disk JSON format of a wallet record.
type recordFile struct {
	Version   int                     `json:"version"`
	ChainID   chain.ID                `json:"chain_id"`
	CreatedAt time.Time               `json:"created_at"`
	Secret    secretFile              `json:"secret"`
	PublicKey string                  `json:"public_key"`
	Address   string                  `json:"address"`
	Addresses []wallet.DerivedAddress `json:"addresses"`
}

type secretFile struct {
	Kind      wallet.SecretKind `json:"kind"`
	Value     string            `json:"value"`
	Encrypted bool              `json:"encrypted"`
}

// Record is a loaded wallet.
type Record struct {
	Chain     chain.ID
	CreatedAt time.Time
	Key       *wallet.KeyMaterial
	Addresses []wallet.DerivedAddress
	Encrypted bool

	secret secretFile
}

// Default returns the index 0 receive address.
func (r *Record) Default() wallet.DerivedAddress {
	if len(r.Addresses) == 0 {
		return wallet.DerivedAddress{}
	}
	return r.Addresses[0]
}

// Address returns the cached entry for index.
func (r *Record) Address(index uint32) (wallet.DerivedAddress, bool) {
	for _, a := range r.Addresses {
		if a.Index == index {
			return a, true
		}
	}
	return wallet.DerivedAddress{}, false
}

// Option configures a Store.
type Option func(*Store)

// WithPassword encrypts secrets of newly created wallets and decrypts
// encrypted ones on load.
func WithPassword(password []byte) Option {
	return func(s *Store) {
		s.password = append([]byte(nil), password...)
	}
}

// WithEncryptionParams overrides the Argon2id cost parameters.
func WithEncryptionParams(p wallet.EncryptionParams) Option {
	return func(s *Store) {
		s.params = p
	}
}

// Store manages wallet_<CHAIN> directories under a data directory.
type Store struct {
	dir      string
	password []byte
	params   wallet.EncryptionParams
}

// New creates a store rooted at dir. The directory is created if it
// doesn't exist.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir, params: wallet.DefaultParams()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close wipes the cached password.
func (s *Store) Close() {
	wallet.Zero(s.password)
}

// ChainDir returns the directory of a chain's wallet.
func (s *Store) ChainDir(id chain.ID) string {
	return filepath.Join(s.dir, "wallet_"+string(id))
}

func (s *Store) recordPath(id chain.ID) string {
	return filepath.Join(s.ChainDir(id), FileName)
}

// Exists reports whether a wallet record exists for id.
func (s *Store) Exists(id chain.ID) bool {
	_, err := os.Stat(s.recordPath(id))
	return err == nil
}

// Create persists a new wallet. It never overwrites an existing record.
func (s *Store) Create(id chain.ID, km *wallet.KeyMaterial, addrs []wallet.DerivedAddress) (*Record, error) {
	if km == nil || km.Chain != id {
		return nil, fmt.Errorf("key material does not belong to %s", id)
	}
	if len(addrs) == 0 || addrs[0].Index != 0 {
		return nil, fmt.Errorf("wallet needs its index 0 address")
	}
	if err := checkContiguous(addrs, 0); err != nil {
		return nil, err
	}
	if s.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, s.recordPath(id))
	}

	secret, err := s.sealSecret(km)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Chain:     id,
		CreatedAt: time.Now().UTC(),
		Key:       km,
		Addresses: append([]wallet.DerivedAddress(nil), addrs...),
		Encrypted: secret.Encrypted,
		secret:    secret,
	}

	if err := os.MkdirAll(s.ChainDir(id), 0700); err != nil {
		return nil, fmt.Errorf("create wallet dir: %w", err)
	}
	data, err := rec.marshal()
	if err != nil {
		return nil, err
	}
	if err := writeNew(s.recordPath(id), data); err != nil {
		return nil, err
	}
	klog.WithChain(klog.Store, string(id)).Info().
		Str("address", rec.Default().Address).
		Bool("encrypted", rec.Encrypted).
		Msg("Wallet created")
	return rec, nil
}

// Load reads the wallet record of id.
func (s *Store) Load(id chain.ID) (*Record, error) {
	path := s.recordPath(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}

	rec, err := parseRecord(id, data)
	if err != nil {
		return nil, corrupt(id, path, data, err)
	}

	km, err := s.openSecret(id, rec.secret)
	if errors.Is(err, ErrCorrupt) {
		return nil, corrupt(id, path, data, err)
	}
	if err != nil {
		return nil, err
	}
	km.Address = rec.Default().Address
	km.PublicKey, _ = hex.DecodeString(rec.Default().PublicKey)
	rec.Key = km
	return rec, nil
}

// Quarantine copies the chain's wallet file aside and returns ErrCorrupt
// wrapping cause. It is for records that load but fail a later check, such
// as an address that no longer re-derives from the stored secret.
func (s *Store) Quarantine(id chain.ID, cause error) error {
	path := s.recordPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v (backup failed: %v)", ErrCorrupt, cause, err)
	}
	return corrupt(id, path, data, cause)
}

// corrupt saves a copy of data next to path and builds the ErrCorrupt
// error for cause. The original file is left in place.
func corrupt(id chain.ID, path string, data []byte, cause error) error {
	backup, err := quarantine(path, data)
	if err != nil {
		return fmt.Errorf("%w: %v (backup failed: %v)", ErrCorrupt, cause, err)
	}
	klog.WithChain(klog.Store, string(id)).Warn().
		Str("backup", backup).Err(cause).Msg("Corrupt wallet file copied aside")
	if errors.Is(cause, ErrCorrupt) {
		return fmt.Errorf("%w (copy saved to %s)", cause, backup)
	}
	return fmt.Errorf("%w: %v (copy saved to %s)", ErrCorrupt, cause, backup)
}

// ExtendAddresses appends newly derived addresses to rec and rewrites the
// record. Entries already cached are skipped; new ones must continue the
// index sequence.
func (s *Store) ExtendAddresses(rec *Record, addrs []wallet.DerivedAddress) error {
	next := uint32(len(rec.Addresses))
	var fresh []wallet.DerivedAddress
	for _, a := range addrs {
		if a.Index < next {
			continue
		}
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := checkContiguous(fresh, next); err != nil {
		return err
	}

	updated := *rec
	updated.Addresses = append(append([]wallet.DerivedAddress(nil), rec.Addresses...), fresh...)
	data, err := updated.marshal()
	if err != nil {
		return err
	}
	if err := writeReplace(s.recordPath(rec.Chain), data); err != nil {
		return err
	}
	rec.Addresses = updated.Addresses
	klog.WithChain(klog.Store, string(rec.Chain)).Debug().
		Int("added", len(fresh)).Int("total", len(rec.Addresses)).Msg("Address cache extended")
	return nil
}

func checkContiguous(addrs []wallet.DerivedAddress, start uint32) error {
	for i, a := range addrs {
		if a.Index != start+uint32(i) {
			return fmt.Errorf("address index %d out of sequence, want %d", a.Index, start+uint32(i))
		}
	}
	return nil
}

func (r *Record) marshal() ([]byte, error) {
	def := r.Default()
	f := recordFile{
		Version:   recordVersion,
		ChainID:   r.Chain,
		CreatedAt: r.CreatedAt,
		Secret:    r.secret,
		PublicKey: def.PublicKey,
		Address:   def.Address,
		Addresses: r.Addresses,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal wallet: %w", err)
	}
	return data, nil
}

func parseRecord(id chain.ID, data []byte) (*Record, error) {
	var f recordFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if f.Version != recordVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", f.Version)
	}
	if f.ChainID != id {
		return nil, fmt.Errorf("record is for chain %q", f.ChainID)
	}
	switch f.Secret.Kind {
	case wallet.SecretMnemonic, wallet.SecretPrivateKey, wallet.SecretSeed:
	default:
		return nil, fmt.Errorf("unknown secret kind %q", f.Secret.Kind)
	}
	if f.Secret.Value == "" {
		return nil, errors.New("secret is empty")
	}
	if len(f.Addresses) == 0 {
		return nil, errors.New("address list is empty")
	}
	if err := checkContiguous(f.Addresses, 0); err != nil {
		return nil, err
	}
	if f.Addresses[0].Address != f.Address {
		return nil, errors.New("default address does not match index 0")
	}
	return &Record{
		Chain:     f.ChainID,
		CreatedAt: f.CreatedAt,
		Addresses: f.Addresses,
		Encrypted: f.Secret.Encrypted,
		secret:    f.Secret,
	}, nil
}

// sealSecret encodes the secret for disk, encrypting it when the store
// holds a password.
func (s *Store) sealSecret(km *wallet.KeyMaterial) (secretFile, error) {
	out := secretFile{Kind: km.Kind}
	err := km.Use(func(secret []byte) error {
		if len(s.password) > 0 {
			enc, err := wallet.Encrypt(secret, s.password, s.params)
			if err != nil {
				return fmt.Errorf("encrypt secret: %w", err)
			}
			out.Value = hex.EncodeToString(enc)
			out.Encrypted = true
			return nil
		}
		if km.Kind == wallet.SecretMnemonic {
			out.Value = string(secret)
		} else {
			out.Value = hex.EncodeToString(secret)
		}
		return nil
	})
	return out, err
}

func (s *Store) openSecret(id chain.ID, f secretFile) (*wallet.KeyMaterial, error) {
	var raw []byte
	switch {
	case f.Encrypted:
		if len(s.password) == 0 {
			return nil, ErrPasswordRequired
		}
		enc, err := hex.DecodeString(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: encrypted secret: %v", ErrCorrupt, err)
		}
		raw, err = wallet.Decrypt(enc, s.password)
		if err != nil {
			return nil, err
		}
	case f.Kind == wallet.SecretMnemonic:
		raw = []byte(f.Value)
	default:
		var err error
		raw, err = hex.DecodeString(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: secret: %v", ErrCorrupt, err)
		}
	}
	defer wallet.Zero(raw)
	return wallet.NewKeyMaterial(id, f.Kind, raw), nil
}

// writeTemp writes data to a synced temp file next to path.
func writeTemp(path string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+FileName+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("write wallet: %w", err)
	}
	name := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("write wallet: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("write wallet: %w", err)
	}
	return name, nil
}

// writeNew publishes data at path only if nothing exists there. The hard
// link fails if another writer got there first.
func writeNew(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return fmt.Errorf("publish wallet: %w", err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// writeReplace atomically replaces path with data.
func writeReplace(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace wallet: %w", err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
}

// quarantine copies a corrupt record to wallet_info.corrupt-<unix>.json and
// leaves the original in place.
func quarantine(path string, data []byte) (string, error) {
	base := strings.TrimSuffix(FileName, ".json")

	// One copy per distinct content.
	existing, _ := filepath.Glob(filepath.Join(filepath.Dir(path), base+".corrupt-*.json"))
	for _, name := range existing {
		if prev, err := os.ReadFile(name); err == nil && bytes.Equal(prev, data) {
			return name, nil
		}
	}

	stamp := time.Now().Unix()
	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("%s.corrupt-%d.json", base, stamp)
		if attempt > 0 {
			name = fmt.Sprintf("%s.corrupt-%d-%d.json", base, stamp, attempt)
		}
		backup := filepath.Join(filepath.Dir(path), name)
		f, err := os.OpenFile(backup, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return backup, nil
	}
	return "", errors.New("too many corrupt backups")
}
