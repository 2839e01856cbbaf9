package models

import (
	"errors"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
	defaultAdminRole     = "super_admin"
)

// InitDefaultAdmin 管理员表为空时创建超级管理员
func InitDefaultAdmin(username, password string) error {
	return EnsureDefaultAdmin(DB, username, password)
}

// EnsureDefaultAdmin 在指定数据库上创建默认超级管理员，已有任意管理员时跳过
func EnsureDefaultAdmin(db *gorm.DB, username, password string) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	var count int64
	if err := db.Model(&Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultAdminUsername
	}
	if password == "" {
		password = defaultAdminPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := Admin{
		Username:     username,
		PasswordHash: string(hash),
		Role:         defaultAdminRole,
		IsSuper:      true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	if password == defaultAdminPassword {
		logger.Warnw("default_admin_created_with_default_password", "username", username)
	} else {
		logger.Infow("default_admin_created", "username", username)
	}
	return nil
}
