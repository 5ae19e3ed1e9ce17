package mysql

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	dbInstance *gorm.DB
	once       sync.Once
	initErr    error

	log = logger.New("mysql", "", "")
)

// DSN 根据配置构建 DSN (Data Source Name) 字符串。
func DSN(cfg *config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Address,
		cfg.Database,
	)
}

// GetDB 使用单例模式初始化并返回一个 GORM 数据库实例。
// 它确保数据库连接在整个应用生命周期中只被建立一次。
func GetDB(ctx context.Context, cfg *config.MySQLConfig) (*gorm.DB, error) {
	once.Do(func() {
		db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MySQL: %w", err)
			return
		}

		// 获取底层 *sql.DB 实例，以便进行连接池配置。
		sqlDB, err := db.DB()
		if err != nil {
			initErr = fmt.Errorf("无法获取底层 SQL DB 实例: %w", err)
			return
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			initErr = fmt.Errorf("MySQL 连接检查失败: %w", err)
			return
		}

		log.WithField("address", cfg.Address).Info("✅ 成功连接到 MySQL!")
		dbInstance = db
	})

	return dbInstance, initErr
}

// Close 安全地关闭单例的数据库连接。
func Close() error {
	if dbInstance == nil {
		return nil
	}
	sqlDB, err := dbInstance.DB()
	if err != nil {
		return fmt.Errorf("❌ 获取底层 SQL DB 实例失败: %w", err)
	}
	log.Info("ℹ️ 已关闭 MySQL 连接。")
	return sqlDB.Close()
}

// HealthCheck 检查数据库连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if dbInstance == nil {
		return fmt.Errorf("数据库连接未初始化")
	}
	sqlDB, err := dbInstance.DB()
	if err != nil {
		return fmt.Errorf("无法获取底层 SQL DB 实例进行健康检查: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
