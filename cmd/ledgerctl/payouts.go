package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func payoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "提现申请审核",
	}

	cmd.AddCommand(payoutsListCmd())
	cmd.AddCommand(payoutsApproveCmd())
	cmd.AddCommand(payoutsRejectCmd())
	cmd.AddCommand(payoutsExportCmd())
	return cmd
}

func payoutsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出待审核提现（按创建时间倒序）",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.svc.Payout.GetAllPendingPayouts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PAYOUT_ID\tACCOUNT\tAMOUNT\tPHONE\tNAME\tCREATED_AT")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					p.PayoutID, p.AccountID, p.Amount, p.PhoneNumber, p.FullName, p.CreatedAt)
			}
			w.Flush()
			fmt.Printf("共 %d 条\n", len(list))
			return nil
		},
	}
}

func payoutsApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <payout-id>",
		Short: "批准提现申请",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.svc.Payout.ApprovePayout(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("批准失败: %w", err)
			}
			fmt.Printf("已批准 %s（账户 %s，金额 %d）\n", p.PayoutID, p.AccountID, p.Amount)
			return nil
		},
	}
}

func payoutsRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <payout-id>",
		Short: "驳回提现申请并退回余额",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.svc.Payout.RejectPayout(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("驳回失败: %w", err)
			}
			fmt.Printf("已驳回 %s，退回账户 %s 金额 %d\n", p.PayoutID, p.AccountID, p.Amount)
			return nil
		},
	}
}

func payoutsExportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出待审核提现为 Excel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			buf, result, err := a.svc.Export.ExportPendingPayouts(cmd.Context())
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, result.FileName)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			fmt.Printf("已导出 %d 条到 %s\n", result.Rows, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "输出目录")
	return cmd
}
