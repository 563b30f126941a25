package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bingo-server/common/logger"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Users 用户表
// 用户唯一标识 = user_id（外部身份，机器人侧传入的不透明字符串）
type Users struct {
	ID        int64           `db:"id"`         // 自增ID（内部使用）
	UserID    string          `db:"user_id"`    // 外部用户ID（唯一键）
	Username  string          `db:"username"`   // 用户名（可选）
	Balance   decimal.Decimal `db:"balance"`    // 余额 DECIMAL(18,2)
	Status    int8            `db:"status"`     // 状态: 1=正常 0=禁用
	CreatedAt int64           `db:"created_at"` // 创建时间（13位毫秒时间戳）
	UpdatedAt int64           `db:"updated_at"` // 更新时间（13位毫秒时间戳）
}

// GetUserByUserID 根据外部用户ID查询用户
func GetUserByUserID(ctx context.Context, db *sqlx.DB, userID string) (*Users, error) {
	query := `SELECT id, user_id, username, balance, status, created_at, updated_at
	          FROM users
	          WHERE user_id = ?
	          LIMIT 1`

	var user Users
	err := db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get user by user_id failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// GetUserByUserIDForUpdate 根据外部用户ID查询用户（加锁）
// 必须在事务中调用
func GetUserByUserIDForUpdate(ctx context.Context, exec sqlx.ExtContext, userID string) (*Users, error) {
	query := `SELECT id, user_id, username, balance, status, created_at, updated_at
	          FROM users
	          WHERE user_id = ?
	          FOR UPDATE`

	var user Users
	err := sqlx.GetContext(ctx, exec, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get user by user_id for update failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// Insert 插入用户
func (u *Users) Insert(ctx context.Context, db *sqlx.DB) error {
	now := getCurrentMillis() // 13位毫秒时间戳
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `INSERT INTO users (user_id, username, balance, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		u.UserID, u.Username, u.Balance, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		logger.Error("insert user failed",
			zap.String("user_id", u.UserID),
			zap.Error(err))
		return err
	}

	id, _ := result.LastInsertId()
	u.ID = id

	logger.Info("user created",
		zap.Int64("id", u.ID),
		zap.String("user_id", u.UserID),
		zap.String("username", u.Username))

	return nil
}

// UpdateUserBalance 更新用户余额
func UpdateUserBalance(ctx context.Context, exec sqlx.ExtContext, userID string, newBalance decimal.Decimal) error {
	now := getCurrentMillis() // 13位毫秒时间戳
	query := `UPDATE users SET balance = ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	if err != nil {
		logger.Error("update user balance failed",
			zap.String("user_id", userID),
			zap.String("new_balance", newBalance.String()),
			zap.Error(err))
		return err
	}

	return nil
}

// GetOrCreateUser 获取或创建用户（自动注册）
// 如果用户不存在，自动创建；如果存在，返回现有用户
func GetOrCreateUser(ctx context.Context, db *sqlx.DB, userID, username string) (*Users, error) {
	// 1. 先查询用户是否存在
	user, err := GetUserByUserID(ctx, db, userID)
	if err == nil {
		return user, nil // 用户已存在
	}

	// 2. 用户不存在，自动创建
	if err == sql.ErrNoRows {
		newUser := &Users{
			UserID:   userID,
			Username: username,
			Balance:  decimal.Zero, // 初始余额
			Status:   1,            // 正常状态
		}

		if err := newUser.Insert(ctx, db); err != nil {
			// 处理并发创建的情况（唯一索引冲突时重新查询）
			if IsMySQLDuplicateKeyError(err) {
				logger.Info("concurrent user creation detected, retry query",
					zap.String("user_id", userID))
				return GetUserByUserID(ctx, db, userID)
			}
			return nil, err
		}

		return newUser, nil
	}

	return nil, err
}

// IsMySQLDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误
func IsMySQLDuplicateKeyError(err error) bool {
	var myErr *mysql.MySQLError
	// MySQL 错误码 1062: Duplicate entry
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// GetUserBalance 获取用户余额（非锁查询）
func GetUserBalance(ctx context.Context, db *sqlx.DB, userID string) (decimal.Decimal, error) {
	query := `SELECT balance FROM users WHERE user_id = ? LIMIT 1`

	var balance decimal.Decimal
	err := db.GetContext(ctx, &balance, query, userID)
	if err != nil {
		logger.Error("get user balance failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return decimal.Zero, err
	}

	return balance, nil
}

// getCurrentMillis 获取当前13位毫秒时间戳
func getCurrentMillis() int64 {
	return time.Now().UnixMilli()
}
