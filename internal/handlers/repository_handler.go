package handlers

import (
	"context"
	"errors"

	"repohub/internal/models"
	"repohub/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RepositoryHandler handles HTTP requests for repositories.
type RepositoryHandler struct {
	repoService *services.RepositoryService
}

// NewRepositoryHandler creates a new RepositoryHandler.
func NewRepositoryHandler(repoService *services.RepositoryService) *RepositoryHandler {
	return &RepositoryHandler{
		repoService: repoService,
	}
}

// FavoriteRequest is the body of the favorite toggle.
type FavoriteRequest struct {
	IsFavorite *bool `json:"is_favorite" validate:"required"`
}

// RegisterRoutes registers the repository routes on router.
func (h *RepositoryHandler) RegisterRoutes(router fiber.Router) {
	repoRoutes := router.Group("/repositories")
	repoRoutes.Get("/", h.HandleListRepositories)
	repoRoutes.Get("/all", h.HandleListRepositories)
	repoRoutes.Get("/user/:id", h.HandleListByOwner)
	repoRoutes.Get("/user/:id/favorites", h.HandleListFavoritesByOwner)
	repoRoutes.Get("/:id", h.HandleGetRepository)
	repoRoutes.Post("/", h.HandleCreateRepository)
	repoRoutes.Patch("/:id/favorite", h.HandleSetFavorite)
	repoRoutes.Put("/:id", h.HandleUpdateRepository)
}

// HandleListRepositories lists all repositories with their owners.
//
//	@Summary	List repositories
//	@Tags		repositories
//	@Produce	json
//	@Success	200	{array}		models.Repository
//	@Failure	500	{object}	ErrorResponse
//	@Router		/repositories [get]
func (h *RepositoryHandler) HandleListRepositories(c *fiber.Ctx) error {
	repos, err := h.repoService.ListRepositories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(repos)
}

// HandleGetRepository returns a repository by ID.
//
//	@Summary	Get repository by ID
//	@Tags		repositories
//	@Produce	json
//	@Param		id	path		int	true	"Repository ID"
//	@Success	200	{object}	models.Repository
//	@Failure	400	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/repositories/{id} [get]
func (h *RepositoryHandler) HandleGetRepository(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	repo, err := h.repoService.GetRepositoryByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if repo == nil {
		return notFound(c, "Repository not found.")
	}
	return c.JSON(repo)
}

// HandleListByOwner lists the repositories of a user.
//
//	@Summary	List repositories of a user
//	@Tags		repositories
//	@Produce	json
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{array}		models.Repository
//	@Failure	404	{object}	ErrorResponse
//	@Router		/repositories/user/{id} [get]
func (h *RepositoryHandler) HandleListByOwner(c *fiber.Ctx) error {
	return h.listByOwner(c, h.repoService.ListRepositoriesByOwner)
}

// HandleListFavoritesByOwner lists the favorite repositories of a user.
//
//	@Summary	List favorite repositories of a user
//	@Tags		repositories
//	@Produce	json
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{array}		models.Repository
//	@Failure	404	{object}	ErrorResponse
//	@Router		/repositories/user/{id}/favorites [get]
func (h *RepositoryHandler) HandleListFavoritesByOwner(c *fiber.Ctx) error {
	return h.listByOwner(c, h.repoService.ListFavoriteRepositoriesByOwner)
}

func (h *RepositoryHandler) listByOwner(c *fiber.Ctx, list func(ctx context.Context, ownerID uint) ([]models.Repository, error)) error {
	ownerID, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	repos, err := list(c.UserContext(), ownerID)
	if errors.Is(err, models.ErrOwnerNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Message: "User not found.",
			Code:    CodeOwnerNotFound,
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(repos)
}

// HandleCreateRepository adds a repository.
//
//	@Summary	Create repository
//	@Tags		repositories
//	@Accept		json
//	@Produce	json
//	@Param		repository	body		services.CreateRepositoryInput	true	"Repository"
//	@Success	201			{object}	models.Repository
//	@Failure	400			{object}	ErrorResponse
//	@Failure	409			{object}	ErrorResponse
//	@Security	BearerAuth
//	@Router		/repositories [post]
func (h *RepositoryHandler) HandleCreateRepository(c *fiber.Ctx) error {
	var input services.CreateRepositoryInput
	if err := bindBody(c, &input); err != nil {
		return respondError(c, err)
	}

	repo, err := h.repoService.AddRepository(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(repo)
}

// HandleSetFavorite sets or clears the favorite flag.
//
//	@Summary	Set favorite flag
//	@Tags		repositories
//	@Accept		json
//	@Produce	json
//	@Param		id			path		int				true	"Repository ID"
//	@Param		favorite	body		FavoriteRequest	true	"Favorite flag"
//	@Success	200			{object}	models.Repository
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Failure	409			{object}	ErrorResponse
//	@Security	BearerAuth
//	@Router		/repositories/{id}/favorite [patch]
func (h *RepositoryHandler) HandleSetFavorite(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var input FavoriteRequest
	if err := bindBody(c, &input); err != nil {
		return respondError(c, err)
	}

	repo, err := h.repoService.SetFavorite(c.UserContext(), id, *input.IsFavorite)
	if err != nil {
		return respondError(c, err)
	}
	if repo == nil {
		return notFound(c, "Repository not found.")
	}
	return c.JSON(repo)
}

// HandleUpdateRepository merges the supplied fields into a repository.
// Omitted or null fields keep their stored values.
//
//	@Summary	Update repository
//	@Tags		repositories
//	@Accept		json
//	@Produce	json
//	@Param		id			path		int						true	"Repository ID"
//	@Param		repository	body		models.RepositoryPatch	true	"Fields to change"
//	@Success	200			{object}	models.Repository
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Failure	409			{object}	ErrorResponse
//	@Security	BearerAuth
//	@Router		/repositories/{id} [put]
func (h *RepositoryHandler) HandleUpdateRepository(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var patch models.RepositoryPatch
	if err := bindBody(c, &patch); err != nil {
		return respondError(c, err)
	}

	repo, err := h.repoService.UpdateRepository(c.UserContext(), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	if repo == nil {
		return notFound(c, "Repository not found.")
	}
	return c.JSON(repo)
}
