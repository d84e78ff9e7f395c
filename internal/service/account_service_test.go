package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
)

func TestRegister_NewAccountGetsCode(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Account.Register(context.Background(), " acc-a ", "")
	if err != nil {
		t.Fatalf("Register 失败: %v", err)
	}
	if !res.Created || res.Profile.AccountID != "acc-a" {
		t.Errorf("注册结果不符: %+v", res)
	}
	if !ValidCodeFormat(res.Profile.ReferralCode) {
		t.Fatalf("新账户应获得合法推荐码，实际 %q", res.Profile.ReferralCode)
	}
	if owner, _ := env.codes.owner(res.Profile.ReferralCode); owner != "acc-a" {
		t.Errorf("推荐码映射应指向 acc-a，实际 %s", owner)
	}
	if res.Profile.Balance != 0 || res.Profile.XP != 0 || res.Profile.ReferredBy != nil {
		t.Errorf("新账户初始资料不符: %+v", res.Profile)
	}
}

func TestRegister_ExistingAccountUnchanged(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-a", "REGA0001", 700)
	env.seedAccount("acc-r", "REGR0001", 0)
	env.seedAccount("acc-first", "REGF0001", 0)
	first := "acc-first"
	a := env.accounts.get("acc-a")
	a.ReferredBy = &first
	env.accounts.put(a)

	res, err := env.svc.Account.Register(context.Background(), "acc-a", "REGR0001")
	if err != nil {
		t.Fatalf("Register 失败: %v", err)
	}
	if res.Created {
		t.Error("已存在账户应返回 created=false")
	}
	if res.Profile.ReferralCode != "REGA0001" || res.Profile.Balance != 700 {
		t.Errorf("已存在账户资料不应变化: %+v", res.Profile)
	}
	if r := env.accounts.get("acc-r"); r.Balance != 0 || r.ReferralCount != 0 {
		t.Error("已归因账户重复注册不应触发推荐奖励")
	}
	if got := env.accounts.get("acc-a").ReferredBy; got == nil || *got != "acc-first" {
		t.Errorf("referred_by 不应被覆盖，实际 %v", got)
	}
}

func TestRegister_RetryCompletesFailedAttribution(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-r", "REGR0001", 0)
	ctx := context.Background()

	// 首次开户时映射读取失败，归因降级为无推荐人
	env.codes.getErr = errors.New("store unavailable")
	res, err := env.svc.Account.Register(ctx, "acc-b", "REGR0001")
	if err != nil {
		t.Fatalf("Register 失败: %v", err)
	}
	if res.Profile.ReferredBy != nil {
		t.Fatalf("归因失败时不应记录推荐人: %+v", res.Profile)
	}
	env.codes.getErr = nil

	// 客户端重试开户，补做归因
	for i := 0; i < 2; i++ {
		res, err = env.svc.Account.Register(ctx, "acc-b", "REGR0001")
		if err != nil {
			t.Fatalf("第 %d 次重试 Register 失败: %v", i+1, err)
		}
		if res.Created {
			t.Error("重试开户应返回 created=false")
		}
		if res.Profile.ReferredBy == nil || *res.Profile.ReferredBy != "acc-r" {
			t.Errorf("第 %d 次重试后应归因到 acc-r，实际 %v", i+1, res.Profile.ReferredBy)
		}
	}

	r := env.accounts.get("acc-r")
	if r.Balance != 100 || r.ReferralCount != 1 {
		t.Errorf("多次重试只应发放一次奖励: balance=%d count=%d", r.Balance, r.ReferralCount)
	}
	if env.txns.count() != 1 {
		t.Errorf("期望 1 条推荐流水，实际 %d", env.txns.count())
	}
}

func TestRegister_RequiresAccountID(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Account.Register(context.Background(), "  ", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("期望校验错误，实际: %v", err)
	}
}

func TestGetProfile_CachesAndHeals(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-a", "", 300)
	ctx := context.Background()

	profile, err := env.svc.Account.GetProfile(ctx, "acc-a")
	if err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if !ValidCodeFormat(profile.ReferralCode) {
		t.Errorf("读取资料时应补发推荐码，实际 %q", profile.ReferralCode)
	}
	if _, ok := env.cache.cached("acc-a"); !ok {
		t.Fatal("读取后应写入缓存")
	}

	// 命中缓存时不再访问存储
	env.accounts.calls = 0
	cached, err := env.svc.Account.GetProfile(ctx, "acc-a")
	if err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if env.accounts.calls != 0 {
		t.Errorf("命中缓存时不应访问存储，实际调用 %d 次", env.accounts.calls)
	}
	if cached.Balance != 300 || cached.ReferralCode != profile.ReferralCode {
		t.Errorf("缓存资料不符: %+v", cached)
	}
}

func TestGetProfile_HealsOnCacheHit(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-a", "HITA0001", 300)
	ctx := context.Background()

	if _, err := env.svc.Account.GetProfile(ctx, "acc-a"); err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}

	// 映射在缓存有效期内丢失
	env.codes.mu.Lock()
	delete(env.codes.mappings, "HITA0001")
	env.codes.mu.Unlock()

	env.accounts.calls = 0
	profile, err := env.svc.Account.GetProfile(ctx, "acc-a")
	if err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if profile.ReferralCode != "HITA0001" {
		t.Errorf("缓存资料不符: %+v", profile)
	}
	if owner, ok := env.codes.owner("HITA0001"); !ok || owner != "acc-a" {
		t.Errorf("命中缓存时也应修复映射，实际 owner=%q ok=%v", owner, ok)
	}
	if env.accounts.calls != 0 {
		t.Errorf("映射修复不应读取账户，实际调用 %d 次", env.accounts.calls)
	}
}

func TestGetProfile_SkipsStaleWriteBack(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-a", "STAL0001", 15000)
	ctx := context.Background()

	// 读取账户之后、回写缓存之前，提现请求提交并清除了缓存
	env.accounts.onGet = func(id string) {
		env.accounts.onGet = nil
		if _, err := env.svc.Payout.RequestPayout(ctx, id, 10000, "0700000000", "Jane"); err != nil {
			t.Errorf("RequestPayout 失败: %v", err)
		}
	}

	if _, err := env.svc.Account.GetProfile(ctx, "acc-a"); err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if cached, ok := env.cache.cached("acc-a"); ok {
		t.Fatalf("与账本变动并发的旧快照不应写入缓存: %+v", cached)
	}

	profile, err := env.svc.Account.GetProfile(ctx, "acc-a")
	if err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if profile.Balance != 5000 {
		t.Errorf("期望读到扣款后的余额 5000，实际 %d", profile.Balance)
	}
	if cached, ok := env.cache.cached("acc-a"); !ok || cached.Balance != 5000 {
		t.Errorf("最新资料应写入缓存，实际 %+v ok=%v", cached, ok)
	}
}

func TestGetProfile_CacheInvalidatedAfterReward(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-a", "CACH0001", 0)
	ctx := context.Background()

	if _, err := env.svc.Account.GetProfile(ctx, "acc-a"); err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if _, err := env.svc.Account.Register(ctx, "acc-b", "CACH0001"); err != nil {
		t.Fatalf("Register 失败: %v", err)
	}

	profile, err := env.svc.Account.GetProfile(ctx, "acc-a")
	if err != nil {
		t.Fatalf("GetProfile 失败: %v", err)
	}
	if profile.Balance != 100 || profile.ReferralCount != 1 {
		t.Errorf("奖励发放后应读到最新资料: %+v", profile)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Account.GetProfile(context.Background(), "acc-none"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("期望 ErrAccountNotFound，实际: %v", err)
	}
}

func TestBanUnban(t *testing.T) {
	env := newTestEnv()
	env.seedAccount("acc-a", "BANA0001", 20000)
	ctx := context.Background()

	if err := env.svc.Account.Ban(ctx, "acc-a"); err != nil {
		t.Fatalf("Ban 失败: %v", err)
	}
	if !env.accounts.get("acc-a").Banned || !env.cache.wasInvalidated("acc-a") {
		t.Error("封禁后应更新状态并清除缓存")
	}
	if _, err := env.svc.Payout.RequestPayout(ctx, "acc-a", 10000, "0700000000", "Jane"); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("封禁账户提现期望 ErrAccountBanned，实际: %v", err)
	}

	if err := env.svc.Account.Unban(ctx, "acc-a"); err != nil {
		t.Fatalf("Unban 失败: %v", err)
	}
	if _, err := env.svc.Payout.RequestPayout(ctx, "acc-a", 10000, "0700000000", "Jane"); err != nil {
		t.Errorf("解封后应可提现: %v", err)
	}

	if err := env.svc.Account.Ban(ctx, "acc-none"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("期望 ErrAccountNotFound，实际: %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	env := newTestEnv()
	for _, id := range []string{"acc-1", "acc-2", "acc-3"} {
		env.accounts.put(&model.Account{AccountID: id})
	}
	ctx := context.Background()

	list, total, err := env.svc.Account.List(ctx, &dto.PaginationRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 3 || len(list) != 1 {
		t.Errorf("期望 total=3 且第 2 页 1 条，实际 total=%d len=%d", total, len(list))
	}

	count, err := env.svc.Account.Count(ctx)
	if err != nil || count != 3 {
		t.Errorf("期望 3 个账户，实际 %d (%v)", count, err)
	}
}
