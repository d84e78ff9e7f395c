package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ── 测试辅助 ──

type fakeArchiver struct {
	err  error
	puts map[string][]byte
}

func (f *fakeArchiver) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[name] = data
	return "exports/" + name, nil
}

func setupTestExportService(archiver *fakeArchiver) (*testEnv, *exportService) {
	env := newTestEnv()
	svc := NewExportService(env.svc.Payout, nil, zap.NewNop()).(*exportService)
	if archiver != nil {
		svc.archiver = archiver
	}
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	return env, svc
}

func seedPendingPayouts(t *testing.T, env *testEnv) {
	t.Helper()
	env.seedAccount("acc-a", "EXPA0001", 50000)
	env.seedAccount("acc-b", "EXPB0001", 50000)
	ctx := context.Background()
	if _, err := env.svc.Payout.RequestPayout(ctx, "acc-a", 10000, "0700000001", "张三"); err != nil {
		t.Fatalf("RequestPayout 失败: %v", err)
	}
	if _, err := env.svc.Payout.RequestPayout(ctx, "acc-b", 25000, "0700000002", "李四"); err != nil {
		t.Fatalf("RequestPayout 失败: %v", err)
	}
}

// ── ExportPendingPayouts 测试 ──

func TestExportService_NoPending(t *testing.T) {
	_, svc := setupTestExportService(nil)

	_, _, err := svc.ExportPendingPayouts(context.Background())
	if !errors.Is(err, ErrExportNoPending) {
		t.Errorf("期望 ErrExportNoPending，实际: %v", err)
	}
}

func TestExportService_Success(t *testing.T) {
	env, svc := setupTestExportService(nil)
	seedPendingPayouts(t, env)

	buf, result, err := svc.ExportPendingPayouts(context.Background())
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if result.FileName != "pending_payouts_20261015_093000.xlsx" {
		t.Errorf("文件名不符: %s", result.FileName)
	}
	if result.Rows != 2 || result.ArchiveKey != "" {
		t.Errorf("导出结果不符: %+v", result)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("读取导出文件失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("待审核提现")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	// 表头 + 2 条数据 + 合计
	if len(rows) != 4 {
		t.Fatalf("期望 4 行，实际 %d", len(rows))
	}
	if rows[0][0] != "申请编号" || rows[0][4] != "金额" {
		t.Errorf("表头不符: %v", rows[0])
	}
	if rows[3][3] != "合计" || rows[3][4] != "35000" {
		t.Errorf("合计行不符: %v", rows[3])
	}

	names := rows[1][2] + rows[2][2]
	if !strings.Contains(names, "张三") || !strings.Contains(names, "李四") {
		t.Errorf("数据行缺少收款人: %v", rows[1:3])
	}
}

func TestExportService_Archives(t *testing.T) {
	archiver := &fakeArchiver{}
	env, svc := setupTestExportService(archiver)
	seedPendingPayouts(t, env)

	buf, result, err := svc.ExportPendingPayouts(context.Background())
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if result.ArchiveKey != "exports/"+result.FileName {
		t.Errorf("归档 key 不符: %s", result.ArchiveKey)
	}
	if !bytes.Equal(archiver.puts[result.FileName], buf.Bytes()) {
		t.Error("归档内容应与导出文件一致")
	}
}

func TestExportService_ArchiveFailureIsNonFatal(t *testing.T) {
	env, svc := setupTestExportService(&fakeArchiver{err: errors.New("bucket unreachable")})
	seedPendingPayouts(t, env)

	buf, result, err := svc.ExportPendingPayouts(context.Background())
	if err != nil {
		t.Fatalf("归档失败不应影响导出: %v", err)
	}
	if buf.Len() == 0 || result.ArchiveKey != "" {
		t.Errorf("期望返回文件且无归档 key，实际 len=%d key=%q", buf.Len(), result.ArchiveKey)
	}
}
