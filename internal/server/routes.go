package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atinyakov/kongtze/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the Kongtze
// REST API from b. Every route is mounted under /api.
//
// Routes:
//
//	POST   /api/auth/register/parent            → registerParent
//	POST   /api/auth/login                      → login
//	POST   /api/auth/register/student           → registerStudent (parents only)
//	GET    /api/auth/me                         → me
//	GET    /api/subjects[/{id}]                 → listSubjects, getSubject
//	GET    /api/study-sessions[/{id}]           → listSessions, getSession
//	POST   /api/study-sessions                  → createSession
//	PUT    /api/study-sessions/{id}             → updateSession
//	DELETE /api/study-sessions/{id}             → deleteSession
//	POST   /api/study-sessions/generate-schedule → generateSchedule
//	POST   /api/tests                           → createTest
//	GET    /api/tests[/{id}]                    → listTests, getTest
//	POST   /api/tests/submit                    → submitTest
//	GET    /api/tests/results[/{id}]            → listResults, getResult
//	POST   /api/homework, /api/class-notes      → multipart photo uploads
//	GET|PUT|DELETE /api/homework/{id}, /api/class-notes/{id}
//	GET    /api/rewards/balance|history|gifts   → balance, history, gifts
//	POST   /api/rewards/gifts                   → createGift (parents only)
//	DELETE /api/rewards/gifts/{id}              → deleteGift (parents only)
//	POST   /api/rewards/lucky-draw              → luckyDraw
//	GET|POST|PUT|DELETE /api/prompt-templates[/{id}]
//	POST   /api/prompt-templates/{id}/preview   → previewTemplate
//	GET    /api/students/{id}/profile           → studentProfile
//
// Middleware chain (applied in order):
//  1. AllowContentType: accepts JSON and multipart bodies only
//  2. WithRequestLogging: logs every request
//  3. injectFailures: serves failures queued with FailNext
//  4. BearerAuth: on everything except registration and login
func NewRouter(b *Backend) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))
	r.Use(middleware.WithRequestLogging(b.log))
	r.Use(b.injectFailures)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register/parent", b.registerParent)
		r.Post("/auth/login", b.login)

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(b.verify))

			r.Post("/auth/register/student", b.registerStudent)
			r.Get("/auth/me", b.me)

			r.Get("/subjects", b.listSubjects)
			r.Get("/subjects/{id}", b.getSubject)

			r.Route("/study-sessions", func(r chi.Router) {
				r.Get("/", b.listSessions)
				r.Post("/", b.createSession)
				r.Post("/generate-schedule", b.generateSchedule)
				r.Get("/{id}", b.getSession)
				r.Put("/{id}", b.updateSession)
				r.Delete("/{id}", b.deleteSession)
			})

			r.Route("/tests", func(r chi.Router) {
				r.Get("/", b.listTests)
				r.Post("/", b.createTest)
				r.Post("/submit", b.submitTest)
				r.Get("/results", b.listResults)
				r.Get("/results/{id}", b.getResult)
				r.Get("/{id}", b.getTest)
			})

			r.Route("/homework", func(r chi.Router) {
				r.Get("/", b.listHomework)
				r.Post("/", b.uploadHomework)
				r.Get("/{id}", b.getHomework)
				r.Put("/{id}", b.updateHomework)
				r.Delete("/{id}", b.deleteHomework)
			})

			r.Route("/class-notes", func(r chi.Router) {
				r.Get("/", b.listNotes)
				r.Post("/", b.uploadNote)
				r.Get("/{id}", b.getNote)
				r.Put("/{id}", b.updateNote)
				r.Delete("/{id}", b.deleteNote)
			})

			r.Route("/rewards", func(r chi.Router) {
				r.Get("/balance", b.rewardBalance)
				r.Get("/history", b.rewardHistory)
				r.Get("/gifts", b.listGifts)
				r.Post("/gifts", b.createGift)
				r.Delete("/gifts/{id}", b.deleteGift)
				r.Post("/lucky-draw", b.luckyDraw)
			})

			r.Route("/prompt-templates", func(r chi.Router) {
				r.Get("/", b.listTemplates)
				r.Post("/", b.createTemplate)
				r.Get("/{id}", b.getTemplate)
				r.Put("/{id}", b.updateTemplate)
				r.Delete("/{id}", b.deleteTemplate)
				r.Post("/{id}/preview", b.previewTemplate)
			})

			r.Get("/students/{id}/profile", b.studentProfile)
		})
	})

	return r
}
