package cmd

import (
	"context"
	"fmt"
	"time"

	"dabeat/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行基本读写操作。会话数据存储在Redis中。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("开始测试Redis连接...")
		fmt.Printf("Redis配置: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer db.CloseRedis()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fmt.Println("开始测试Redis基本操作...")
		if err := db.TestRedis(ctx, db.RedisClient); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}

		keys, err := db.RedisClient.Keys(ctx, "session:*").Result()
		if err != nil {
			return fmt.Errorf("统计会话失败: %w", err)
		}
		fmt.Printf("Redis基本操作测试成功！当前会话数: %d\n", len(keys))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
