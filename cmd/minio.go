package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dabeat/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `检查MinIO存储桶，按前缀列出媒体文件或查看统计信息。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.MinioEnabled() {
			return fmt.Errorf("MINIO_ENDPOINT 未配置")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		store, err := storage.NewMinioMediaStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		fmt.Println("MinIO连接成功！")

		objects, err := store.List(ctx, minioPrefix)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}

		if minioStats {
			stats := storage.Stats(objects)
			fmt.Printf("\n存储桶 %s (前缀: %q)\n", store.Bucket(), minioPrefix)
			fmt.Printf("文件数量: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if stats.TotalObjects > 0 {
				fmt.Printf("最近修改: %s\n", stats.LastModified.Format(time.DateTime))
			}
			return nil
		}

		sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
		fmt.Printf("\n列出存储桶中的文件 (前缀: %q)...\n", minioPrefix)
		for _, obj := range objects {
			fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format(time.DateTime))
		}
		fmt.Printf("共 %d 个文件\n", len(objects))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.ObjectPrefix, "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示统计信息")

	minioCmd.Example = `  # 列出所有媒体文件
  dabeat minio

  # 只看封面
  dabeat minio -p "dabeat/covers/"

  # 显示统计信息
  dabeat minio -s`
}
