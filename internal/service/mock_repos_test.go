package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/config"
	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	pkgerrors "github.com/Sirtheprogrammer/innervoice/pkg/errors"
)

// ── Mock AccountRepository ──

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	calls    int
	findErr  error // 模拟回退扫描被拒绝
	onGet    func(id string)
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*model.Account)}
}

func (m *mockAccountRepo) put(a *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.AccountID] = &cp
}

func (m *mockAccountRepo) get(id string) *model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (m *mockAccountRepo) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]model.Account, len(m.accounts))
	for id, a := range m.accounts {
		saved[id] = *a
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.accounts = make(map[string]*model.Account, len(saved))
		for id, a := range saved {
			cp := a
			m.accounts[id] = &cp
		}
	}
}

func (m *mockAccountRepo) Create(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.accounts[account.AccountID]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *account
	m.accounts[account.AccountID] = &cp
	return nil
}

// GetByID 读取后调用 onGet，模拟读取与后续写入之间的并发变动
func (m *mockAccountRepo) GetByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	m.calls++
	a, ok := m.accounts[id]
	var cp model.Account
	if ok {
		cp = *a
	}
	hook := m.onGet
	m.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &cp, nil
}

func (m *mockAccountRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAccountRepo) FindByReferralCode(_ context.Context, code string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.accounts {
		if a.ReferralCode != nil && *a.ReferralCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAccountRepo) SetReferralCode(_ context.Context, id, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	a, ok := m.accounts[id]
	if !ok || a.ReferralCode != nil {
		return pkgerrors.ErrOptimisticLock
	}
	a.ReferralCode = &code
	return nil
}

func (m *mockAccountRepo) ClaimReferredBy(_ context.Context, id, referrerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	a, ok := m.accounts[id]
	if !ok || a.ReferredBy != nil {
		return false, nil
	}
	a.ReferredBy = &referrerID
	return true, nil
}

func (m *mockAccountRepo) CreditReferralReward(_ context.Context, id string, xp, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	a, ok := m.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.XP += xp
	a.Balance += balance
	a.ReferralCount++
	return nil
}

func (m *mockAccountRepo) Debit(_ context.Context, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	a, ok := m.accounts[id]
	if !ok || a.Balance < amount {
		return pkgerrors.ErrOptimisticLock
	}
	a.Balance -= amount
	return nil
}

func (m *mockAccountRepo) Credit(_ context.Context, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	a, ok := m.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Balance += amount
	return nil
}

func (m *mockAccountRepo) SetBanned(_ context.Context, id string, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	a, ok := m.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Banned = banned
	return nil
}

func (m *mockAccountRepo) sorted() []model.Account {
	result := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result
}

func (m *mockAccountRepo) List(_ context.Context, offset, limit int) ([]model.Account, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Account{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockAccountRepo) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.accounts)), nil
}

func (m *mockAccountRepo) ListAfter(_ context.Context, afterID string, limit int) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Account
	for _, a := range m.sorted() {
		if a.AccountID > afterID {
			result = append(result, a)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// ── Mock ReferralCodeRepository ──

type mockReferralCodeRepo struct {
	mu       sync.Mutex
	mappings map[string]*model.ReferralCodeMapping
	getErr   error
	creates  int
}

func newMockReferralCodeRepo() *mockReferralCodeRepo {
	return &mockReferralCodeRepo{mappings: make(map[string]*model.ReferralCodeMapping)}
}

func (m *mockReferralCodeRepo) owner(code string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.mappings[code]
	if !ok {
		return "", false
	}
	return mp.OwnerAccountID, true
}

func (m *mockReferralCodeRepo) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]model.ReferralCodeMapping, len(m.mappings))
	for code, mp := range m.mappings {
		saved[code] = *mp
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.mappings = make(map[string]*model.ReferralCodeMapping, len(saved))
		for code, mp := range saved {
			cp := mp
			m.mappings[code] = &cp
		}
	}
}

func (m *mockReferralCodeRepo) GetByCode(_ context.Context, code string) (*model.ReferralCodeMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if mp, ok := m.mappings[code]; ok {
		cp := *mp
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralCodeRepo) CreateIfAbsent(_ context.Context, mapping *model.ReferralCodeMapping) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mappings[mapping.Code]; ok {
		return false, nil
	}
	cp := *mapping
	m.mappings[mapping.Code] = &cp
	m.creates++
	return true, nil
}

// ── Mock ReferralTransactionRepository ──

type mockReferralTxRepo struct {
	mu   sync.Mutex
	txns []model.ReferralTransaction
}

func newMockReferralTxRepo() *mockReferralTxRepo {
	return &mockReferralTxRepo{}
}

func (m *mockReferralTxRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txns)
}

func (m *mockReferralTxRepo) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := append([]model.ReferralTransaction(nil), m.txns...)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.txns = saved
	}
}

func (m *mockReferralTxRepo) Create(_ context.Context, txn *model.ReferralTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.ReferredUserID == txn.ReferredUserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	m.txns = append(m.txns, *txn)
	return nil
}

func (m *mockReferralTxRepo) ListByReferrer(_ context.Context, referrerID string, offset, limit int) ([]model.ReferralTransaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ReferralTransaction
	for _, t := range m.txns {
		if t.ReferrerID == referrerID {
			all = append(all, t)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.ReferralTransaction{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock PayoutRepository ──

type mockPayoutRepo struct {
	mu        sync.Mutex
	payouts   map[string]*model.PayoutRequest
	createErr error // 模拟扣款后写入申请失败
}

func newMockPayoutRepo() *mockPayoutRepo {
	return &mockPayoutRepo{payouts: make(map[string]*model.PayoutRequest)}
}

func (m *mockPayoutRepo) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]model.PayoutRequest, len(m.payouts))
	for id, p := range m.payouts {
		saved[id] = *p
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.payouts = make(map[string]*model.PayoutRequest, len(saved))
		for id, p := range saved {
			cp := p
			m.payouts[id] = &cp
		}
	}
}

func (m *mockPayoutRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payouts)
}

func (m *mockPayoutRepo) Create(_ context.Context, payout *model.PayoutRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *payout
	m.payouts[payout.PayoutID] = &cp
	return nil
}

func (m *mockPayoutRepo) GetByID(_ context.Context, id string) (*model.PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payouts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPayoutRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.PayoutRequest, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPayoutRepo) Transition(_ context.Context, id, from, to string, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.ProcessedAt = &processedAt
	return true, nil
}

func (m *mockPayoutRepo) filter(keep func(p *model.PayoutRequest) bool) []model.PayoutRequest {
	var result []model.PayoutRequest
	for _, p := range m.payouts {
		if keep(p) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (m *mockPayoutRepo) ListByStatus(_ context.Context, status string) ([]model.PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(p *model.PayoutRequest) bool { return p.Status == status }), nil
}

func (m *mockPayoutRepo) ListByAccount(_ context.Context, accountID string, offset, limit int) ([]model.PayoutRequest, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filter(func(p *model.PayoutRequest) bool { return p.AccountID == accountID })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.PayoutRequest{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock ProfileCache ──

type mockCache struct {
	mu          sync.Mutex
	profiles    map[string]interface{}
	versions    map[string]int64
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{profiles: make(map[string]interface{}), versions: make(map[string]int64)}
}

func (m *mockCache) GetProfile(_ context.Context, accountID string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.profiles[accountID]
	if !ok {
		return false, nil
	}
	if p, ok := dest.(*dto.ProfileResponse); ok {
		*p = v.(dto.ProfileResponse)
	}
	return true, nil
}

func (m *mockCache) ProfileVersion(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[accountID], nil
}

func (m *mockCache) SetProfile(_ context.Context, accountID string, profile interface{}, version int64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[accountID] != version {
		return nil
	}
	m.profiles[accountID] = profile
	return nil
}

func (m *mockCache) cached(id string) (dto.ProfileResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.profiles[id]
	if !ok {
		return dto.ProfileResponse{}, false
	}
	return v.(dto.ProfileResponse), true
}

func (m *mockCache) InvalidateProfile(_ context.Context, accountIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range accountIDs {
		delete(m.profiles, id)
		m.versions[id]++
		m.invalidated = append(m.invalidated, id)
	}
	return nil
}

func (m *mockCache) wasInvalidated(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.invalidated {
		if v == id {
			return true
		}
	}
	return false
}

// ── 测试装配 ──

type testEnv struct {
	repo     *repository.Repository
	accounts *mockAccountRepo
	codes    *mockReferralCodeRepo
	txns     *mockReferralTxRepo
	payouts  *mockPayoutRepo
	cache    *mockCache
	svc      *Service
}

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{
			ReferralRewardXP:      100,
			ReferralRewardBalance: 100,
			PayoutMinAmount:       10000,
			CodeIssueAttempts:     5,
			TxMaxAttempts:         3,
			ProfileCacheTTL:       time.Minute,
		},
	}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		accounts: newMockAccountRepo(),
		codes:    newMockReferralCodeRepo(),
		txns:     newMockReferralTxRepo(),
		payouts:  newMockPayoutRepo(),
		cache:    newMockCache(),
	}
	env.repo = &repository.Repository{
		Account:      env.accounts,
		ReferralCode: env.codes,
		ReferralTx:   env.txns,
		Payout:       env.payouts,
	}
	env.svc = NewService(testConfig(), env.repo, env.cache, nil, zap.NewNop())
	return env
}

// seedAccount 写入账户及其推荐码映射
func (e *testEnv) seedAccount(id, code string, balance int64) {
	a := &model.Account{AccountID: id, Balance: balance, BaseModel: model.BaseModel{CreatedAt: time.Now()}}
	if code != "" {
		c := code
		a.ReferralCode = &c
		e.codes.mappings[code] = &model.ReferralCodeMapping{Code: code, OwnerAccountID: id}
	}
	e.accounts.put(a)
}
