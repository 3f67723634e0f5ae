package main

import (
	"fmt"
	"log"
	"os"

	"huddle/internal/database"
	"huddle/internal/services"
	"huddle/pkg/config"
	"huddle/pkg/jwt"
	"huddle/pkg/logger"

	"github.com/spf13/cobra"
)

// tenantctl 平台运维命令行工具
// 开通租户、签发平台管理令牌，不经过HTTP管理接口

var rootCmd = &cobra.Command{
	Use:   "tenantctl",
	Short: "Huddle租户运维工具",
	Long:  "管理Huddle租户：开通租户、吊销租户、签发平台管理令牌",
}

var (
	createName      string
	createDomain    string
	createSubdomain string
	createAllowIPs  string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "开通新租户",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initApp(); err != nil {
			return err
		}
		defer database.Close()

		service := services.NewTenantService(database.GetDB())
		tenant, secret, err := service.Create(createName, createDomain, createSubdomain, createAllowIPs)
		if err != nil {
			return err
		}

		fmt.Printf("租户已开通\n")
		fmt.Printf("  ID:        %d\n", tenant.ID)
		fmt.Printf("  名称:      %s\n", tenant.Name)
		fmt.Printf("  域名:      %s\n", tenant.Domain)
		fmt.Printf("  公钥:      %s\n", tenant.PublicKey)
		fmt.Printf("  密钥:      %s\n", secret)
		fmt.Println("密钥只显示这一次，请妥善保存")
		return nil
	},
}

var revokeTenantID uint

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "吊销租户",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initApp(); err != nil {
			return err
		}
		defer database.Close()

		service := services.NewTenantService(database.GetDB())
		tenant, err := service.Revoke(revokeTenantID)
		if err != nil {
			return err
		}

		fmt.Printf("租户 %s (ID: %d) 已吊销\n", tenant.Name, tenant.ID)
		return nil
	},
}

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发平台管理令牌",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadConfig(); err != nil {
			return err
		}

		manager := jwt.GetJWTManager()
		token, err := manager.GenerateAdminToken(tokenSubject)
		if err != nil {
			return err
		}

		fmt.Printf("令牌（有效期 %s）:\n%s\n", manager.GetTokenDuration(), token)
		return nil
	},
}

// initApp 加载配置并连接数据库
func initApp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg); err != nil {
		return err
	}
	if err := database.Initialize(cfg); err != nil {
		return err
	}
	return database.Migrate()
}

func main() {
	createCmd.Flags().StringVar(&createName, "name", "", "租户名称")
	createCmd.Flags().StringVar(&createDomain, "domain", "", "租户域名")
	createCmd.Flags().StringVar(&createSubdomain, "subdomain", "", "租户子域名（可选）")
	createCmd.Flags().StringVar(&createAllowIPs, "allow-ips", "", "IP白名单，逗号分隔（可选）")
	if err := createCmd.MarkFlagRequired("name"); err != nil {
		log.Fatal(err)
	}
	if err := createCmd.MarkFlagRequired("domain"); err != nil {
		log.Fatal(err)
	}

	revokeCmd.Flags().UintVar(&revokeTenantID, "id", 0, "租户ID")
	if err := revokeCmd.MarkFlagRequired("id"); err != nil {
		log.Fatal(err)
	}

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "platform-admin", "令牌主体")

	rootCmd.AddCommand(createCmd, revokeCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
