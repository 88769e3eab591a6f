package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hajj-management/config"
	"hajj-management/internal/api/middleware"
	"hajj-management/pkg/jwt"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发访问 Token（调试与服务间调用）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := validateRole(role); err != nil {
				return err
			}

			token, err := newTokenManager(cfg).GenerateAccessToken(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "写入 Token 的 user_id")
	cmd.Flags().StringVar(&role, "role", "operator", "角色: admin 或 operator")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTokenManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(&cfg.Auth)
}

// validateRole 只允许路由层识别的角色
func validateRole(role string) error {
	switch role {
	case middleware.RoleAdmin, middleware.RoleOperator:
		return nil
	default:
		return fmt.Errorf("无效的角色 %q，可选 admin / operator", role)
	}
}
