package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hajj-management/internal/job"
	"hajj-management/internal/service"
	"hajj-management/pkg/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移到最新版本",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			sqlDB, err := rt.db.DB()
			if err != nil {
				return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
			}
			status, err := database.RunMigrations(sqlDB, rt.logger)
			if err != nil {
				return err
			}
			if status.Dirty {
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("!"),
					fmt.Sprintf("数据库版本 %d 处于 dirty 状态，请人工修复", status.Version))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint("✓"),
				fmt.Sprintf("数据库已是最新版本 (version %d)", status.Version))
			return nil
		},
	}
}

func newSweepCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "立即执行一轮全部周期任务（窗口巡检、等待评估、补员检查、一致性检查）",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			runner := job.NewRunner(rt.svc, &rt.cfg.Engine, nil, rt.logger)
			if err := runner.RunOnce(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgRed).Sprint("FAILED"), err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint("✓"), "周期任务已执行一轮")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "整轮执行的超时时间")
	return cmd
}

func newAuditCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "检查阶段与中心计数器一致性并输出报告",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			report := rt.svc.Auditor.AuditAll(cmd.Context())
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printAuditReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出报告")
	return cmd
}

// printAuditReport 终端可读的检查报告
func printAuditReport(w io.Writer, report *service.AuditReport) {
	fmt.Fprintf(w, "阶段 %d 个，中心 %d 个\n", report.StagesChecked, report.CentersChecked)

	if len(report.Findings) == 0 {
		fmt.Fprintln(w, color.New(color.FgGreen).Sprint("✓"), "未发现偏差")
	}
	for _, f := range report.Findings {
		fmt.Fprintf(w, "  %s %-16s %s  %s\n",
			color.New(color.FgYellow).Sprint("!"),
			f.Type,
			color.New(color.FgCyan).Sprint(f.SubjectID),
			f.Message,
		)
	}

	if report.Raised > 0 || report.Resolved > 0 {
		fmt.Fprintf(w, "新建告警 %s，自动关闭 %s\n",
			color.New(color.FgRed).Sprint(report.Raised),
			color.New(color.FgGreen).Sprint(report.Resolved),
		)
	}
}
