// Package seed creates demo accounts and feed state for development and
// testing. It writes the same blob layout the session coordinator hydrates
// from, so a seeded store looks exactly like one left behind by real use.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"agora/internal/identity"
	"agora/internal/models"
	"agora/internal/storage"
)

// Options controls the size and shape of the generated data set.
type Options struct {
	Users          int
	PostsPerUser   int
	MaxFollows     int
	MaxDaysBack    int
	Password       string
	WithOnboarding bool
}

// DefaultOptions returns a small but lively data set.
func DefaultOptions() Options {
	return Options{
		Users:        12,
		PostsPerUser: 4,
		MaxFollows:   5,
		MaxDaysBack:  30,
		Password:     "password123",
	}
}

// Seeder generates demo state into a blob store and identity service.
type Seeder struct {
	blobs    storage.Store
	identity *identity.Service
	rng      *rand.Rand
	now      time.Time
}

// NewSeeder creates a Seeder. A fixed rng seed keeps repeated runs stable
// for demos; pass 0 to randomize.
func NewSeeder(blobs storage.Store, idp *identity.Service, rngSeed int64) *Seeder {
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	gofakeit.Seed(rngSeed)
	return &Seeder{
		blobs:    blobs,
		identity: idp,
		rng:      rand.New(rand.NewSource(rngSeed)),
		now:      time.Now().UTC(),
	}
}

// SeededUser pairs the created account with its login email.
type SeededUser struct {
	UserID   string
	Email    string
	Username string
}

// Run generates accounts, profiles with a follow mesh, posts with comments
// and likes, and the notifications those actions would have produced.
func (s *Seeder) Run(ctx context.Context, opts Options) ([]SeededUser, error) {
	users, profiles, err := s.seedUsers(ctx, opts)
	if err != nil {
		return nil, err
	}

	s.weaveFollowMesh(profiles, opts)
	posts := s.seedPosts(profiles, opts)
	notifications := s.seedEngagement(profiles, posts)

	if err := s.persist(ctx, profiles, posts, notifications, opts); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) seedUsers(ctx context.Context, opts Options) ([]SeededUser, []*models.Profile, error) {
	users := make([]SeededUser, 0, opts.Users)
	profiles := make([]*models.Profile, 0, opts.Users)

	for i := 0; i < opts.Users; i++ {
		username := gofakeit.Username()
		email := fmt.Sprintf("%s%d@%s", username, i, gofakeit.DomainName())

		account, _, err := s.identity.SignUp(ctx, email, opts.Password, username)
		if err != nil {
			return nil, nil, fmt.Errorf("seeding account %q: %w", email, err)
		}

		profile := &models.Profile{
			UserID:        account.UserID,
			Username:      username,
			AvatarURL:     models.PlaceholderAvatar(account.UserID),
			Gender:        gofakeit.Gender(),
			Qualification: gofakeit.JobTitle(),
			Country:       gofakeit.Country(),
		}
		profile.Normalize()

		users = append(users, SeededUser{UserID: account.UserID, Email: email, Username: username})
		profiles = append(profiles, profile)
	}
	return users, profiles, nil
}

func (s *Seeder) weaveFollowMesh(profiles []*models.Profile, opts Options) {
	for _, p := range profiles {
		n := s.rng.Intn(opts.MaxFollows + 1)
		for _, j := range s.rng.Perm(len(profiles)) {
			if n == 0 {
				break
			}
			target := profiles[j]
			if target.UserID == p.UserID || p.IsFollowing(target.UserID) {
				continue
			}
			p.Following = append(p.Following, target.UserID)
			target.Followers = append(target.Followers, p.UserID)
			n--
		}
	}
}

func (s *Seeder) seedPosts(profiles []*models.Profile, opts Options) []models.Post {
	var posts []models.Post
	for _, p := range profiles {
		for i := 0; i < opts.PostsPerUser; i++ {
			post := models.Post{
				ID:        uuid.New().String(),
				UserID:    p.UserID,
				Username:  p.Username,
				AvatarURL: p.AvatarURL,
				Content:   gofakeit.Sentence(8 + s.rng.Intn(12)),
				Timestamp: s.timestampBack(opts.MaxDaysBack),
				Comments:  []models.Comment{},
			}
			if s.rng.Intn(3) == 0 {
				post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", uuid.New().String()[:8])
			}
			posts = append(posts, post)
		}
	}
	// Newest first, matching the store's ordering.
	for i := 0; i < len(posts); i++ {
		for j := i + 1; j < len(posts); j++ {
			if posts[j].Timestamp.After(posts[i].Timestamp) {
				posts[i], posts[j] = posts[j], posts[i]
			}
		}
	}
	return posts
}

// seedEngagement adds comments and likes from followers and returns the
// notifications those actions produce, keyed for the post author.
func (s *Seeder) seedEngagement(profiles []*models.Profile, posts []models.Post) map[string][]models.Notification {
	byID := make(map[string]*models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}

	notifications := make(map[string][]models.Notification)
	for i := range posts {
		post := &posts[i]
		author := byID[post.UserID]
		for _, followerID := range author.Followers {
			follower := byID[followerID]
			if follower == nil || s.rng.Intn(3) != 0 {
				continue
			}

			if s.rng.Intn(2) == 0 {
				post.Comments = append(post.Comments, models.Comment{
					ID:        uuid.New().String(),
					UserID:    follower.UserID,
					Username:  follower.Username,
					Text:      gofakeit.Sentence(4 + s.rng.Intn(8)),
					Timestamp: post.Timestamp.Add(time.Duration(1+s.rng.Intn(120)) * time.Minute),
				})
				notifications[post.UserID] = append(notifications[post.UserID], s.notification(
					follower, post, models.NotificationComment))
			} else {
				post.Likes++
				notifications[post.UserID] = append(notifications[post.UserID], s.notification(
					follower, post, models.NotificationLike))
			}
		}
	}

	// Follow notifications for every woven edge.
	for _, p := range profiles {
		for _, followerID := range p.Followers {
			follower := byID[followerID]
			if follower == nil {
				continue
			}
			notifications[p.UserID] = append(notifications[p.UserID], models.Notification{
				ID:             uuid.New().String(),
				RecipientID:    p.UserID,
				ActorID:        follower.UserID,
				ActorUsername:  follower.Username,
				ActorAvatarURL: follower.AvatarURL,
				Type:           models.NotificationFollow,
				Timestamp:      s.timestampBack(7),
			})
		}
	}
	return notifications
}

func (s *Seeder) notification(actor *models.Profile, post *models.Post, kind models.NotificationType) models.Notification {
	return models.Notification{
		ID:                uuid.New().String(),
		RecipientID:       post.UserID,
		ActorID:           actor.UserID,
		ActorUsername:     actor.Username,
		ActorAvatarURL:    actor.AvatarURL,
		Type:              kind,
		PostID:            post.ID,
		PostContentSample: models.SampleContent(post.Content),
		Timestamp:         post.Timestamp.Add(time.Duration(1+s.rng.Intn(240)) * time.Minute),
	}
}

func (s *Seeder) persist(ctx context.Context, profiles []*models.Profile,
	posts []models.Post, notifications map[string][]models.Notification, opts Options) error {

	profileMap := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		profileMap[p.UserID] = *p
	}
	if err := s.saveJSON(ctx, storage.KeyProfiles, profileMap); err != nil {
		return err
	}
	if err := s.saveJSON(ctx, storage.KeyPosts, posts); err != nil {
		return err
	}
	for userID, entries := range notifications {
		// Newest first within each log.
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				if entries[j].Timestamp.After(entries[i].Timestamp) {
					entries[i], entries[j] = entries[j], entries[i]
				}
			}
		}
		if err := s.saveJSON(ctx, storage.NotificationsKey(userID), entries); err != nil {
			return err
		}
	}
	if opts.WithOnboarding {
		for _, p := range profiles {
			if err := s.blobs.Save(ctx, storage.OnboardingKey(p.UserID), []byte("true")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) saveJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := s.blobs.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (s *Seeder) timestampBack(maxDays int) time.Time {
	if maxDays <= 0 {
		maxDays = 1
	}
	back := time.Duration(s.rng.Intn(maxDays*24*60)) * time.Minute
	return s.now.Add(-back)
}
