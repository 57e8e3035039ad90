package service

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ataryouth/internal/config"
	"ataryouth/internal/media/imaging"
	"ataryouth/internal/repository/repotest"
	"ataryouth/internal/security"
	"ataryouth/internal/storage"
)

type prefixURLs string

func (p prefixURLs) URL(rel string) string { return string(p) + rel }

type recordingCleanup struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingCleanup) ScheduleCleanup(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

type fixture struct {
	users    *repotest.Users
	tokens   *security.TokenIssuer
	auth     *AuthService
	profiles *ProfileService
	cleanup  *recordingCleanup
	store    *storage.LocalStore
}

func newFixture(t *testing.T, registrationStatus string) *fixture {
	t.Helper()
	users := repotest.NewUsers()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "/uploads")
	require.NoError(t, err)

	resolver := NewPhotoResolver(store)
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	cleanup := &recordingCleanup{}
	pipeline := imaging.NewPipeline(store, zerolog.Nop())

	return &fixture{
		users:  users,
		tokens: tokens,
		auth: NewAuthService(users, security.NewPasswordHasher(bcrypt.MinCost), tokens, nil, resolver,
			config.AuthConfig{RegistrationStatus: registrationStatus}, zerolog.Nop()),
		profiles: NewProfileService(users, pipeline, cleanup, resolver, 5<<20, zerolog.Nop()),
		cleanup:  cleanup,
		store:    store,
	}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:       "Member@AtarYouth.org",
		Phone:       "+211912345678",
		Password:    "secret123",
		FullName:    "Deng Garang Mabior",
		Gender:      "male",
		DateOfBirth: "2001-03-04",
		County:      "Juba",
		Payam:       "Kator",
	}
}

func (f *fixture) register(t *testing.T, in RegisterInput) string {
	t.Helper()
	res, err := f.auth.Register(context.Background(), in)
	require.NoError(t, err)
	return res.UserID
}

func writeImage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "raw-upload")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}
