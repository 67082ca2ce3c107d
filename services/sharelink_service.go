package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/repositories"
	"github.com/storyreel/backend/storage"
)

// ShareClaims are the claims carried by a share-link token.
type ShareClaims struct {
	ProjectID string `json:"projectId"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// ShareLinkService issues and validates signed share links for projects.
// The token itself is the capability; the repository keeps a record so
// links can be audited alongside the project.
type ShareLinkService struct {
	repo   *repositories.ProjectRepository
	secret []byte
}

// NewShareLinkService creates a share-link service.
func NewShareLinkService(repo *repositories.ProjectRepository, secret string) *ShareLinkService {
	return &ShareLinkService{repo: repo, secret: []byte(secret)}
}

// CreateShareLink signs a share token and records it on the project. Only
// editor and viewer roles can be shared; owner is never grantable via link.
func (s *ShareLinkService) CreateShareLink(ctx context.Context, projectID string, req dto.CreateShareLinkRequest, actor storage.Actor) (*dto.ShareLinkResponse, error) {
	role := models.CollaboratorRole(req.Role)
	if role != models.RoleEditor && role != models.RoleViewer {
		role = models.RoleViewer
	}

	expiresIn := time.Duration(req.ExpiresIn) * time.Hour
	if expiresIn <= 0 {
		expiresIn = 72 * time.Hour
	}
	expiresAt := time.Now().Add(expiresIn)

	claims := ShareClaims{
		ProjectID: projectID,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	link, err := s.repo.CreateShareLink(ctx, projectID, token, role, expiresAt, actor)
	if err != nil {
		return nil, err
	}

	return &dto.ShareLinkResponse{
		ID:        link.ID,
		Token:     token,
		Role:      string(role),
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateShareToken parses a share token and returns its claims.
func (s *ShareLinkService) ValidateShareToken(tokenString string) (*ShareClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ShareClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ShareClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid share token")
	}
	return claims, nil
}
