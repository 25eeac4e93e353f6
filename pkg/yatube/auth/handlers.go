package auth

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"gorm.io/gorm"
)

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRegex.MatchString(fl.Field().String())
		})
	}
}

// Handler handles registration and token requests
type Handler struct {
	db     *gorm.DB
	tokens *TokenManager
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, tokens *TokenManager) *Handler {
	return &Handler{db: db, tokens: tokens}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,max=150,username"`
	Password  string `json:"password" binding:"required,min=8"`
	Email     string `json:"email" binding:"omitempty,email,max=254"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}

// TokenCreateRequest represents the credentials exchanged for a token pair
type TokenCreateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenRefreshRequest carries a refresh token
type TokenRefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// TokenVerifyRequest carries any token to be checked
type TokenVerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} UserResponse
// @Failure 422 {object} map[string]interface{} "Validation error"
// @Router /users/ [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hashedPassword,
		Active:       true,
	}

	// The unique index decides; there is no separate existence check to race against
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			apierror.Respond(c, apierror.Validation(map[string][]string{
				"username": {"A user with that username already exists."},
			}))
			return
		}
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(&user))
}

// Me returns the current authenticated user
// @Summary Get current user
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /users/me/ [get]
func (h *Handler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		apierror.Respond(c, apierror.ErrAuthenticationRequired)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// CreateToken exchanges credentials for an access/refresh token pair
// @Summary Obtain JWT pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenCreateRequest true "Credentials"
// @Success 200 {object} TokenPair
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Failure 429 {object} map[string]string "Throttled"
// @Router /jwt/create/ [post]
func (h *Handler) CreateToken(c *gin.Context) {
	var req TokenCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No active account found with the given credentials"})
			return
		}
		apierror.Respond(c, err)
		return
	}

	if !user.Active || !CheckPassword(req.Password, user.PasswordHash) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No active account found with the given credentials"})
		return
	}

	pair, err := h.tokens.IssuePair(&user)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// RefreshToken issues a new access token from a refresh token
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRefreshRequest true "Refresh token"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string "Invalid token"
// @Router /jwt/refresh/ [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return
	}

	access, err := h.tokens.Refresh(req.Refresh)
	if err != nil {
		apierror.Respond(c, apierror.ErrInvalidToken)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}

// VerifyToken checks that a token is valid
// @Summary Verify token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenVerifyRequest true "Token"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string "Invalid token"
// @Router /jwt/verify/ [post]
func (h *Handler) VerifyToken(c *gin.Context) {
	var req TokenVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return
	}

	if _, err := h.tokens.Validate(req.Token, ""); err != nil {
		apierror.Respond(c, apierror.ErrInvalidToken)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// RegisterRoutes registers auth routes on the given router group.
// tokenMiddleware runs in front of the credential exchange only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, tokenMiddleware ...gin.HandlerFunc) {
	rg.POST("/users/", h.Register)
	rg.GET("/users/me/", RequireAuth(), h.Me)

	create := append(append([]gin.HandlerFunc{}, tokenMiddleware...), h.CreateToken)
	rg.POST("/jwt/create/", create...)
	rg.POST("/jwt/refresh/", h.RefreshToken)
	rg.POST("/jwt/verify/", h.VerifyToken)
}
