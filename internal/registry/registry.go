// Package registry keeps the brokerage accounts of a process.
//
// Each account is addressed by a token and serializes every call made through
// Do. Requests carrying an id are answered once; a repeated id within the
// request ttl replays the first response.
package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-broker/internal/broker"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRequestTTL is how long a request id is remembered.
	DefaultRequestTTL = 10 * time.Minute

	accountFileExt = ".json"
)

// Account is a broker registered under a token.
type Account struct {
	Token    string
	Name     string
	Broker   *broker.Broker
	Requests *RequestStore

	mu sync.Mutex
}

type Registry struct {
	mu         sync.RWMutex
	accounts   map[string]*Account
	deps       broker.Deps
	logger     *logger.Logger
	requestTTL time.Duration
	now        func() time.Time
}

// NewRegistry returns an empty registry. Accounts are built with deps.
func NewRegistry(deps broker.Deps, requestTTL time.Duration) *Registry {
	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	if requestTTL <= 0 {
		requestTTL = DefaultRequestTTL
	}

	return &Registry{
		accounts:   map[string]*Account{},
		deps:       deps,
		logger:     log,
		requestTTL: requestTTL,
		now:        time.Now,
	}
}

// Create opens an account under token. An empty token gets a generated one.
// Creating an existing token with the same name returns the existing account.
func (r *Registry) Create(token string, config broker.Config) (*Account, error) {
	if token == "" {
		token = uuid.New().String()
	}

	if err := checkToken(token); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[token]; ok {
		if account.Name != config.Name {
			return nil, errors.Newf(errors.ErrCodeAccountConflict,
				"token %s is already used by account %s", token, account.Name)
		}

		return account, nil
	}

	b, err := broker.NewBroker(config, r.deps)
	if err != nil {
		return nil, err
	}

	account := r.newAccount(token, b)
	r.accounts[token] = account

	r.logger.Info("Account registered", zap.String("token", token), zap.String("name", config.Name))

	return account, nil
}

func (r *Registry) newAccount(token string, b *broker.Broker) *Account {
	return &Account{
		Token:    token,
		Name:     b.Name(),
		Broker:   b,
		Requests: NewRequestStore(r.requestTTL, r.now),
	}
}

func checkToken(token string) error {
	if strings.ContainsAny(token, `/\`) || token == "." || token == ".." {
		return errors.Newf(errors.ErrCodeBadParameter, "invalid account token %q", token)
	}

	return nil
}

func (r *Registry) Get(token string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[token]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", token)
	}

	return account, nil
}

// Delete removes the account under token.
func (r *Registry) Delete(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[token]; !ok {
		return errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", token)
	}

	delete(r.accounts, token)

	r.logger.Info("Account deleted", zap.String("token", token))

	return nil
}

// List returns the accounts sorted by token.
func (r *Registry) List() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]*Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Token < accounts[j].Token
	})

	return accounts
}

// Do runs fn on the broker of token while holding the account. A non-empty
// requestID already handled within the request ttl returns the first
// response without calling fn.
func (r *Registry) Do(token string, requestID string, fn func(*broker.Broker) (any, error)) (any, error) {
	account, err := r.Get(token)
	if err != nil {
		return nil, err
	}

	account.mu.Lock()
	defer account.mu.Unlock()

	if requestID != "" {
		if response, ok := account.Requests.Lookup(requestID); ok {
			r.logger.Debug("Replaying request", zap.String("token", token), zap.String("request_id", requestID))

			return response.Value, response.Err
		}
	}

	value, err := fn(account.Broker)

	if requestID != "" {
		if rememberErr := account.Requests.Remember(requestID, Response{Value: value, Err: err}); rememberErr != nil {
			r.logger.Warn("Failed to remember request", zap.String("request_id", requestID), zap.Error(rememberErr))
		}
	}

	return value, err
}

// accountFile is the on-disk form of an account.
type accountFile struct {
	Token  string          `json:"token"`
	Name   string          `json:"name"`
	Broker json.RawMessage `json:"broker"`
}

// SaveAll writes every account to its own file in dir.
func (r *Registry) SaveAll(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotFailed, "failed to create directory", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, account := range r.List() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return saveAccount(dir, account)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	r.logger.Info("Accounts saved", zap.String("dir", dir))

	return nil
}

func saveAccount(dir string, account *Account) error {
	account.mu.Lock()
	defer account.mu.Unlock()

	state, err := account.Broker.Snapshot()
	if err != nil {
		return err
	}

	data, err := json.Marshal(accountFile{Token: account.Token, Name: account.Name, Broker: state})
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "failed to encode account %s", account.Token)
	}

	path := filepath.Join(dir, account.Token+accountFileExt)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "failed to write %s", path)
	}

	return nil
}

// LoadAll restores every account file in dir. Loading a token that is already
// registered fails with ErrCodeAccountConflict.
func (r *Registry) LoadAll(ctx context.Context, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+accountFileExt))
	if err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotFailed, "failed to list account files", err)
	}

	accounts := make([]*Account, len(paths))
	g, ctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			account, err := r.loadAccount(path)
			if err != nil {
				return err
			}

			accounts[i] = account

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(accounts))

	for _, account := range accounts {
		if _, ok := r.accounts[account.Token]; ok || seen[account.Token] {
			return errors.Newf(errors.ErrCodeAccountConflict, "account %s is already registered", account.Token)
		}

		seen[account.Token] = true
	}

	for _, account := range accounts {
		r.accounts[account.Token] = account
	}

	r.logger.Info("Accounts loaded", zap.String("dir", dir), zap.Int("count", len(accounts)))

	return nil
}

func (r *Registry) loadAccount(path string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "failed to read %s", path)
	}

	var file accountFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "failed to decode %s", path)
	}

	if err := checkToken(file.Token); err != nil || file.Token == "" {
		return nil, errors.Newf(errors.ErrCodeSnapshotFailed, "invalid token in %s", path)
	}

	b, err := broker.Restore(file.Broker, r.deps)
	if err != nil {
		return nil, err
	}

	return r.newAccount(file.Token, b), nil
}
