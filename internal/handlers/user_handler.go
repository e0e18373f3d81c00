package handlers

import (
	"net/url"

	"repohub/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// RegisterRoutes registers the user routes on router.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleListUsers)
	userRoutes.Get("/email/:email", h.HandleGetUserByEmail)
	userRoutes.Get("/:id", h.HandleGetUser)
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Delete("/:id", h.HandleDeleteUser)
}

// HandleListUsers lists all users.
//
//	@Summary	List users
//	@Tags		users
//	@Produce	json
//	@Success	200	{array}		models.User
//	@Failure	500	{object}	ErrorResponse
//	@Router		/users [get]
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	users, err := h.userService.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// HandleGetUser returns a user by ID.
//
//	@Summary	Get user by ID
//	@Tags		users
//	@Produce	json
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{object}	models.User
//	@Failure	400	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/users/{id} [get]
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	user, err := h.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return notFound(c, "User not found.")
	}
	return c.JSON(user)
}

// HandleGetUserByEmail returns a user by email. The path segment may be
// percent-encoded.
//
//	@Summary	Get user by email
//	@Tags		users
//	@Produce	json
//	@Param		email	path		string	true	"Email"
//	@Success	200		{object}	models.User
//	@Failure	400		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/users/email/{email} [get]
func (h *UserHandler) HandleGetUserByEmail(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return respondError(c, &requestError{status: fiber.StatusBadRequest, body: ErrorResponse{
			Message: "Invalid email",
			Code:    CodeValidation,
		}})
	}
	user, err := h.userService.GetUserByEmail(c.UserContext(), email)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return notFound(c, "User not found.")
	}
	return c.JSON(user)
}

// HandleCreateUser registers a new user.
//
//	@Summary	Create user
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Param		user	body		services.CreateUserInput	true	"User"
//	@Success	201		{object}	models.User
//	@Failure	400		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Security	BearerAuth
//	@Router		/users [post]
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var input services.CreateUserInput
	if err := bindBody(c, &input); err != nil {
		return respondError(c, err)
	}

	user, err := h.userService.AddUser(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleDeleteUser deletes a user and the repositories they own.
//
//	@Summary	Delete user
//	@Tags		users
//	@Produce	json
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{object}	map[string]string
//	@Failure	404	{object}	ErrorResponse
//	@Security	BearerAuth
//	@Router		/users/{id} [delete]
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	deleted, err := h.userService.DeleteUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !deleted {
		return notFound(c, "User not found.")
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
