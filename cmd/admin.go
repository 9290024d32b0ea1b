package cmd

import (
	"context"
	"fmt"
	"time"

	"dabeat/db"
	"dabeat/repository"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "管理员权限管理",
}

func setAdminCommand(use, short string, isAdmin bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.ConnectGormDB(cfg); err != nil {
				return err
			}
			defer db.CloseGormDB()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			found, err := repository.NewGormUserRepository(db.GormDB).SetAdmin(ctx, args[0], isAdmin)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("用户 %s 不存在", args[0])
			}
			fmt.Printf("用户 %s 管理员权限: %v\n", args[0], isAdmin)
			return nil
		},
	}
}

func init() {
	adminCmd.AddCommand(setAdminCommand("grant", "授予管理员权限", true))
	adminCmd.AddCommand(setAdminCommand("revoke", "撤销管理员权限", false))
	rootCmd.AddCommand(adminCmd)
}
