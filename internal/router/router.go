package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pmoura/go-recipe-api/internal/api/auth"
	"github.com/pmoura/go-recipe-api/internal/api/ingredient"
	"github.com/pmoura/go-recipe-api/internal/api/recipe"
	"github.com/pmoura/go-recipe-api/internal/api/tag"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler            auth.Handler
	TagHandler             tag.Handler
	IngredientHandler      ingredient.Handler
	RecipeHandler          recipe.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/user", func(r chi.Router) {
		// Public: account creation and token exchange.
		r.Post("/create", cfg.AuthHandler.RegisterHandler)
		r.Post("/token", cfg.AuthHandler.TokenHandler)

		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Get("/me", cfg.AuthHandler.GetMeHandler)
			r.Put("/me", cfg.AuthHandler.UpdateMeHandler)
			r.Patch("/me", cfg.AuthHandler.UpdateMeHandler)
		})
	})

	// Every recipe-domain route requires a valid token.
	r.Route("/recipe", func(r chi.Router) {
		r.Use(cfg.AuthenticateMiddleware)

		r.Get("/tags", cfg.TagHandler.ListTagsHandler)
		r.Post("/tags", cfg.TagHandler.CreateTagHandler)

		r.Get("/ingredients", cfg.IngredientHandler.ListIngredientsHandler)
		r.Post("/ingredients", cfg.IngredientHandler.CreateIngredientHandler)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", cfg.RecipeHandler.ListRecipesHandler)
			r.Post("/", cfg.RecipeHandler.CreateRecipeHandler)

			r.Route("/{recipeID}", func(r chi.Router) {
				r.Get("/", cfg.RecipeHandler.GetRecipeHandler)
				r.Put("/", cfg.RecipeHandler.UpdateRecipeHandler)
				r.Patch("/", cfg.RecipeHandler.PatchRecipeHandler)
				r.Delete("/", cfg.RecipeHandler.DeleteRecipeHandler)
				r.Post("/upload-image", cfg.RecipeHandler.UploadImageHandler)
			})
		})
	})

	return r
}
