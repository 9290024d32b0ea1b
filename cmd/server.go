package cmd

import (
	"dabeat/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动DaBeat服务器",
	Long:  `启动DaBeat的HTTP服务器，提供页面、上传和媒体代理`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
