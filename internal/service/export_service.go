package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/pkg/storage"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoPending    = errors.New("暂无待审核的提现申请")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// XLSXContentType 导出文件的 MIME 类型
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportService 导出业务接口
//
//   - 导出待审核提现申请为 Excel (.xlsx)，供管理员线下打款核对
//   - 配置了对象存储时同时归档一份，归档失败不影响导出
type ExportService interface {
	ExportPendingPayouts(ctx context.Context) (*bytes.Buffer, *dto.ExportResult, error)
}

type exportService struct {
	payouts  PayoutService
	archiver storage.Archiver
	now      func() time.Time
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例，archiver 可为 nil
func NewExportService(payouts PayoutService, archiver storage.Archiver, logger *zap.Logger) ExportService {
	return &exportService{payouts: payouts, archiver: archiver, now: time.Now, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportPendingPayouts 导出待审核提现
// ═══════════════════════════════════════════════════════════
//
// 列：申请编号 | 账户 | 收款人 | 手机号 | 金额 | 申请时间
// 末行为金额合计

func (s *exportService) ExportPendingPayouts(ctx context.Context) (*bytes.Buffer, *dto.ExportResult, error) {
	pending, err := s.payouts.GetAllPendingPayouts(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(pending) == 0 {
		return nil, nil, ErrExportNoPending
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "待审核提现"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		s.logger.Error("创建工作表失败", zap.Error(err))
		return nil, nil, ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 38)
	f.SetColWidth(sheetName, "B", "B", 30)
	f.SetColWidth(sheetName, "C", "D", 18)
	f.SetColWidth(sheetName, "E", "E", 12)
	f.SetColWidth(sheetName, "F", "F", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"申请编号", "账户", "收款人", "手机号", "金额", "申请时间"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	var total int64
	row := 2
	for _, p := range pending {
		f.SetCellValue(sheetName, cell("A", row), p.PayoutID)
		f.SetCellValue(sheetName, cell("B", row), p.AccountID)
		f.SetCellValue(sheetName, cell("C", row), p.FullName)
		f.SetCellValue(sheetName, cell("D", row), p.PhoneNumber)
		f.SetCellValue(sheetName, cell("E", row), p.Amount)
		f.SetCellValue(sheetName, cell("F", row), p.CreatedAt)
		total += p.Amount
		row++
	}
	f.SetCellValue(sheetName, cell("D", row), "合计")
	f.SetCellValue(sheetName, cell("E", row), total)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, nil, ErrExportGenerateFail
	}

	result := &dto.ExportResult{
		FileName: fmt.Sprintf("pending_payouts_%s.xlsx", s.now().UTC().Format("20060102_150405")),
		Rows:     len(pending),
	}

	if s.archiver != nil {
		key, err := s.archiver.Put(ctx, result.FileName, XLSXContentType, buf.Bytes())
		if err != nil {
			s.logger.Warn("导出文件归档失败", zap.String("file", result.FileName), zap.Error(err))
		} else {
			result.ArchiveKey = key
		}
	}

	s.logger.Info("待审核提现已导出",
		zap.Int("rows", result.Rows),
		zap.Int64("total_amount", total),
		zap.String("archive_key", result.ArchiveKey),
	)
	return buf, result, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
