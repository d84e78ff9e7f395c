package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sirtheprogrammer/innervoice/pkg/jwt"
)

// tokenCmd 签发本地联调用的访问令牌，生产环境由身份提供方签发
func tokenCmd() *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "token <account-id>",
		Short: "签发访问令牌（本地联调）",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			role := jwt.RoleUser
			if admin {
				role = jwt.RoleAdmin
			}

			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(args[0], role)
			if err != nil {
				return fmt.Errorf("签发失败: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "签发管理员令牌")
	return cmd
}
