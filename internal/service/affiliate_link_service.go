package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/authz"
	"github.com/NishadApi25/final-year-project/internal/repository"

	"github.com/gosimple/slug"
)

// AffiliateLinkService 推广链接生成
type AffiliateLinkService struct {
	appURL      string
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
}

// NewAffiliateLinkService 创建推广链接服务
func NewAffiliateLinkService(appURL string, userRepo repository.UserRepository, productRepo repository.ProductRepository) *AffiliateLinkService {
	return &AffiliateLinkService{
		appURL:      strings.TrimRight(strings.TrimSpace(appURL), "/"),
		userRepo:    userRepo,
		productRepo: productRepo,
	}
}

// GenerateLinkInput 生成推广链接输入，ProductID 与 Slug 至少一个
type GenerateLinkInput struct {
	UserID    uint
	ProductID uint
	Slug      string
}

// GenerateLink 返回 ${app_url}/product/${slug}?affiliate=${userId}
func (s *AffiliateLinkService) GenerateLink(input GenerateLinkInput) (string, error) {
	if input.UserID == 0 || (input.ProductID == 0 && strings.TrimSpace(input.Slug) == "") {
		return "", validationError("Missing productId or userId")
	}
	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrNotAffiliate
	}
	if !authz.IsAffiliate(user) {
		return "", ErrNotAffiliate
	}

	productSlug, err := s.resolveSlug(input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/product/%s?affiliate=%d", s.appURL, url.PathEscape(productSlug), user.ID), nil
}

func (s *AffiliateLinkService) resolveSlug(input GenerateLinkInput) (string, error) {
	if input.ProductID != 0 {
		product, err := s.productRepo.GetByID(input.ProductID)
		if err != nil {
			return "", err
		}
		if product == nil {
			return "", ErrProductNotFound
		}
		if strings.TrimSpace(product.Slug) != "" {
			return product.Slug, nil
		}
		return slug.Make(product.Name), nil
	}

	product, err := s.productRepo.GetBySlug(strings.TrimSpace(input.Slug))
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", ErrProductNotFound
	}
	return product.Slug, nil
}
