package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elevateforhumanity/enrollment-gin/internal/config"
	"github.com/elevateforhumanity/enrollment-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置,未配置的项使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	poolConfig := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if poolConfig.MaxIdleConns <= 0 {
		poolConfig.MaxIdleConns = 10
	}
	if poolConfig.MaxOpenConns <= 0 {
		poolConfig.MaxOpenConns = 100
	}
	if poolConfig.ConnMaxLifetime <= 0 {
		poolConfig.ConnMaxLifetime = 3600
	}
	if poolConfig.ConnMaxIdleTime <= 0 {
		poolConfig.ConnMaxIdleTime = 600
	}
	return poolConfig
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return ConnectSQLite(cfg.Path)
	}

	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolConfig := GetPoolConfig(cfg)
	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectSQLite 连接 SQLite 数据库(开发与测试)
// 内存库只保留一个连接,否则每个新连接都会看到一个空库
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.ProfileModel{},
		&model.ProgramModel{},
		&model.ProgramHolderModel{},
		&model.EnrollmentModel{},
		&model.ApprenticeModel{},
		&model.ApprenticeDocumentModel{},
		&model.EnrollmentStepModel{},
		&model.StatusHistoryModel{},
		&model.AuditLogModel{},
		&model.NotificationModel{},
		&model.EmailOutboxModel{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		if err := installStepProcedure(db); err != nil {
			return fmt.Errorf("failed to install generate_enrollment_steps: %w", err)
		}
	}

	return nil
}

// CreateIndexes 创建组合索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{"idx_enrollments_status_created", "CREATE INDEX IF NOT EXISTS idx_enrollments_status_created ON enrollments(status, created_at)"},
		{"idx_steps_enrollment_sequence", "CREATE UNIQUE INDEX IF NOT EXISTS idx_steps_enrollment_sequence ON enrollment_steps(enrollment_id, sequence)"},
		{"idx_documents_apprentice_type", "CREATE INDEX IF NOT EXISTS idx_documents_apprentice_type ON apprentice_documents(apprentice_id, document_type)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
		{"idx_outbox_status_created", "CREATE INDEX IF NOT EXISTS idx_outbox_status_created ON email_outbox(status, created_at)"},
		{"idx_notifications_user_read", "CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, read)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	return nil
}

// installStepProcedure 安装 generate_enrollment_steps 存储过程
// 已有步骤时直接返回现有数量,保证幂等
func installStepProcedure(db *gorm.DB) error {
	defaults, err := json.Marshal(model.DefaultEnrollmentSteps)
	if err != nil {
		return err
	}

	procedure := fmt.Sprintf(`
CREATE OR REPLACE FUNCTION generate_enrollment_steps(p_enrollment_id varchar)
RETURNS integer AS $$
DECLARE
	v_existing integer;
	v_template jsonb;
	v_title text;
	v_seq integer := 0;
BEGIN
	SELECT count(*) INTO v_existing FROM enrollment_steps WHERE enrollment_id = p_enrollment_id;
	IF v_existing > 0 THEN
		RETURN v_existing;
	END IF;

	SELECT p.step_template INTO v_template
	FROM enrollments e LEFT JOIN programs p ON p.id = e.program_id
	WHERE e.id = p_enrollment_id;
	IF NOT FOUND THEN
		RAISE EXCEPTION 'enrollment %% not found', p_enrollment_id;
	END IF;

	IF v_template IS NULL OR jsonb_typeof(v_template) <> 'array' OR jsonb_array_length(v_template) = 0 THEN
		v_template := '%s'::jsonb;
	END IF;

	FOR v_title IN SELECT jsonb_array_elements_text(v_template) LOOP
		v_seq := v_seq + 1;
		INSERT INTO enrollment_steps (id, enrollment_id, sequence, title, status, created_at)
		VALUES (gen_random_uuid()::text, p_enrollment_id, v_seq, v_title, 'pending', now());
	END LOOP;

	RETURN v_seq;
END;
$$ LANGUAGE plpgsql;`, strings.ReplaceAll(string(defaults), "'", "''"))

	return db.Exec(procedure).Error
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
