package models

import (
	"database/sql"
	"time"
)

const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"

	AccountIndividual = "individual"
	AccountCompany    = "ico"
)

type User struct {
	ID                  int64         `db:"id"`
	Username            string        `db:"username"`
	FirstName           string        `db:"first_name"`
	LastName            string        `db:"last_name"`
	Email               string        `db:"email"`
	PasswordHash        string        `db:"password_hash"`
	Instrument          string        `db:"instrument"`
	SecondaryInstrument string        `db:"secondary_instrument"`
	Bio                 string        `db:"bio"`
	Town                string        `db:"town"`
	CreatedAt           time.Time     `db:"created_at"`
	Active              bool          `db:"active"`
	ProfilePhoto        string        `db:"profile_photo"`
	Plan                string        `db:"plan"`
	AccountType         string        `db:"account_type"`
	OrganizationName    string        `db:"organization_name"`
	Searchable          bool          `db:"searchable"`
	IsAdmin             bool          `db:"is_admin"`
	IsModerator         bool          `db:"is_moderator"`
	IsVIP               bool          `db:"is_vip"`
	BillingExempt       bool          `db:"billing_exempt"`
	IsDeleted           bool          `db:"is_deleted"`
	StrikesCount        int           `db:"strikes_count"`
	BannedUntil         sql.NullTime  `db:"banned_until"`
	BannedReason        string        `db:"banned_reason"`
	PublicAccount       bool          `db:"public_account"`
	AllowRating         bool          `db:"allow_rating"`
	Theme               string        `db:"theme"`
	FollowMode          string        `db:"follow_mode"`
	FollowGenres        string        `db:"follow_genres"`
	FollowEntities      string        `db:"follow_entities"`
	RatingCount         sql.NullInt64 `db:"rating_count"`
	RatingSum           int64         `db:"rating_sum"`
	RatingAvg           float64       `db:"rating_avg"`
	RatingBayes         float64       `db:"rating_bayes"`
	EraseToken          string        `db:"erase_token"`
	EraseRequestedAt    sql.NullTime  `db:"erase_requested_at"`
	EraseDeadlineAt     sql.NullTime  `db:"erase_deadline_at"`
	EraseFeedback       string        `db:"erase_feedback"`
}

// IsBanned reports whether a ban is in force at now.
func (u *User) IsBanned(now time.Time) bool {
	return u != nil && u.BannedUntil.Valid && u.BannedUntil.Time.After(now)
}

func (u *User) ErasePending() bool {
	return u != nil && u.EraseToken != "" && !u.IsDeleted
}

func (u *User) IsStaff() bool {
	return u != nil && (u.IsAdmin || u.IsModerator)
}

// Role is the casbin subject for the user.
func (u *User) Role() string {
	switch {
	case u == nil:
		return "guest"
	case u.IsAdmin:
		return "admin"
	case u.IsModerator:
		return "moderator"
	default:
		return "user"
	}
}

type City struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	District string `db:"district"`
	Region   string `db:"region"`
}

// Classified is a bazár listing.
type Classified struct {
	ID          int64         `db:"id"`
	Kind        string        `db:"kind"`
	Category    string        `db:"category"`
	City        string        `db:"city"`
	CityID      sql.NullInt64 `db:"city_id"`
	Transport   string        `db:"transport"`
	Price       float64       `db:"price"`
	Description string        `db:"description"`
	CreatedAt   time.Time     `db:"created_at"`
	UserID      int64         `db:"user_id"`
	Author      string        `db:"author"`
	Photos      []string      `db:"-"`
}

// Request is a dopyt: an event booking inquiry from a visitor.
type Request struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Email       string          `db:"email"`
	EventType   string          `db:"event_type"`
	Place       string          `db:"place"`
	EventDate   string          `db:"event_date"`
	TimeFrom    string          `db:"time_from"`
	TimeTo      string          `db:"time_to"`
	Description string          `db:"description"`
	Budget      sql.NullFloat64 `db:"budget"`
	UserID      sql.NullInt64   `db:"user_id"`
	Active      bool            `db:"active"`
	DeletedAt   sql.NullTime    `db:"deleted_at"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Group is a skupina: a band or ensemble.
type Group struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Genre       string    `db:"genre"`
	City        string    `db:"city"`
	Email       string    `db:"email"`
	Web         string    `db:"web"`
	Description string    `db:"description"`
	Photo       string    `db:"photo"`
	CreatedAt   time.Time `db:"created_at"`
	FounderID   int64     `db:"founder_id"`
	FounderName string    `db:"founder_name"`
}

const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteRevoked  = "revoked"
	InviteExpired  = "expired"
)

type GroupInvite struct {
	ID          int64        `db:"id"`
	Token       string       `db:"token"`
	Status      string       `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	ExpiresAt   sql.NullTime `db:"expires_at"`
	GroupID     int64        `db:"group_id"`
	InviteeID   int64        `db:"invitee_id"`
	InviterID   int64        `db:"inviter_id"`
	GroupName   string       `db:"group_name"`
	InviteeName string       `db:"invitee_name"`
}

type Photo struct {
	ID       int64  `db:"id"`
	FileName string `db:"file_name"`
	OwnerID  int64  `db:"owner_id"`
}

type Video struct {
	ID          int64  `db:"id"`
	YouTubeURL  string `db:"youtube_url"`
	Description string `db:"description"`
	OwnerID     int64  `db:"owner_id"`
}

// CalendarEvent is an udalosť owned by a user or by a group.
type CalendarEvent struct {
	ID          int64         `db:"id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	EventDate   string        `db:"event_date"`
	TimeFrom    string        `db:"time_from"`
	TimeTo      string        `db:"time_to"`
	Place       string        `db:"place"`
	Note        string        `db:"note"`
	AllDay      bool          `db:"all_day"`
	UserID      sql.NullInt64 `db:"user_id"`
	GroupID     sql.NullInt64 `db:"group_id"`
}

type Message struct {
	ID                 int64         `db:"id"`
	Body               string        `db:"body"`
	FromID             int64         `db:"from_id"`
	ToID               sql.NullInt64 `db:"to_id"`
	ToEmail            string        `db:"to_email"`
	ClassifiedID       sql.NullInt64 `db:"classified_id"`
	RequestID          sql.NullInt64 `db:"request_id"`
	CreatedAt          time.Time     `db:"created_at"`
	Read               bool          `db:"is_read"`
	DeletedByRecipient bool          `db:"deleted_by_recipient"`
	Held               bool          `db:"held"`
	FromName           string        `db:"from_name"`
	ToName             string        `db:"to_name"`
}

type ForumCategory struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type ForumTopic struct {
	ID           int64     `db:"id"`
	Title        string    `db:"title"`
	Body         string    `db:"body"`
	AuthorID     int64     `db:"author_id"`
	CategoryID   int64     `db:"category_id"`
	CreatedAt    time.Time `db:"created_at"`
	ActivityAt   time.Time `db:"activity_at"`
	Author       string    `db:"author"`
	CategoryName string    `db:"category_name"`
	AnswersCount int       `db:"answers_count"`
}

type ForumPost struct {
	ID        int64     `db:"id"`
	Body      string    `db:"body"`
	AuthorID  int64     `db:"author_id"`
	TopicID   int64     `db:"topic_id"`
	CreatedAt time.Time `db:"created_at"`
	IsAnswer  bool      `db:"is_answer"`
	Author    string    `db:"author"`
}

type ForumNotification struct {
	ID         int64        `db:"id"`
	UserID     int64        `db:"user_id"`
	TopicID    int64        `db:"topic_id"`
	PostID     int64        `db:"post_id"`
	Reason     string       `db:"reason"`
	CreatedAt  time.Time    `db:"created_at"`
	ReadAt     sql.NullTime `db:"read_at"`
	TopicTitle string       `db:"topic_title"`
}

// QuickRequest is a rýchly dopyt posted to the community board.
type QuickRequest struct {
	ID         int64         `db:"id"`
	Text       string        `db:"text"`
	CityID     sql.NullInt64 `db:"city_id"`
	AuthorID   int64         `db:"author_id"`
	CreatedAt  time.Time     `db:"created_at"`
	ValidUntil time.Time     `db:"valid_until"`
	Active     bool          `db:"active"`
	ArchivedAt sql.NullTime  `db:"archived_at"`
	Author     string        `db:"author"`
	CityName   string        `db:"city_name"`
}

const (
	ReportOpen     = "open"
	ReportResolved = "resolved"
	ReportIgnored  = "ignored"
)

type Report struct {
	ID             int64         `db:"id"`
	ReporterID     sql.NullInt64 `db:"reporter_id"`
	EntityType     string        `db:"entity_type"`
	EntityID       int64         `db:"entity_id"`
	Reason         string        `db:"reason"`
	Details        string        `db:"details"`
	Status         string        `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
	ResolvedAt     sql.NullTime  `db:"resolved_at"`
	ResolvedBy     sql.NullInt64 `db:"resolved_by"`
	ResolutionNote string        `db:"resolution_note"`
}

type ModerationLog struct {
	ID         int64     `db:"id"`
	ActorID    int64     `db:"actor_id"`
	Action     string    `db:"action"`
	TargetType string    `db:"target_type"`
	TargetID   int64     `db:"target_id"`
	Note       string    `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}

// Ad is a reklama shown by company accounts.
type Ad struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	Title     string       `db:"title"`
	Text      string       `db:"text"`
	URL       string       `db:"url"`
	StartAt   time.Time    `db:"start_at"`
	EndAt     sql.NullTime `db:"end_at"`
	IsTop     bool         `db:"is_top"`
	Photo     string       `db:"photo"`
	CreatedAt time.Time    `db:"created_at"`
}

type AdReport struct {
	ID         int64         `db:"id"`
	AdID       int64         `db:"ad_id"`
	ReporterID int64         `db:"reporter_id"`
	Reason     string        `db:"reason"`
	CreatedAt  time.Time     `db:"created_at"`
	Handled    bool          `db:"handled"`
	HandledBy  sql.NullInt64 `db:"handled_by"`
	HandledAt  sql.NullTime  `db:"handled_at"`
	Action     string        `db:"action"`
	AdTitle    string        `db:"ad_title"`
	Reporter   string        `db:"reporter"`
}

// Event is a podujatie published by an organiser.
type Event struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Title       string    `db:"title"`
	Organizer   string    `db:"organizer"`
	Place       string    `db:"place"`
	StartAt     time.Time `db:"start_at"`
	Description string    `db:"description"`
	Photo       string    `db:"photo"`
	CreatedAt   time.Time `db:"created_at"`
}

const (
	RatingActive  = "active"
	RatingRemoved = "removed"
)

type Rating struct {
	ID          int64         `db:"id"`
	RateeID     int64         `db:"ratee_id"`
	RaterID     int64         `db:"rater_id"`
	Recommend   bool          `db:"recommend"`
	Stars       sql.NullInt64 `db:"stars"`
	CategoryKey string        `db:"category_key"`
	Note        string        `db:"note"`
	Status      string        `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}
