package models

import (
	"time"
)

type NovelStatus string

const (
	StatusOngoing   NovelStatus = "Ongoing"
	StatusCompleted NovelStatus = "Completed"
)

type Novel struct {
	ID            string      `json:"id" firestore:"-"`
	Title         string      `json:"title" firestore:"title"`
	Author        string      `json:"author" firestore:"author"`
	CoverImage    string      `json:"cover_image" firestore:"coverImage"`
	Genre         string      `json:"genre" firestore:"genre"`
	Status        NovelStatus `json:"status" firestore:"status"`
	Rating        float64     `json:"rating" firestore:"rating"`
	Views         int64       `json:"views" firestore:"views"`
	TotalChapters int         `json:"total_chapters" firestore:"totalChapters"`
	Summary       string      `json:"summary" firestore:"summary"`
	Featured      bool        `json:"featured" firestore:"featured"`
	Published     bool        `json:"published" firestore:"published"`
	CreatedAt     time.Time   `json:"created_at" firestore:"createdAt"`
}

// Fields is the document representation of n. The id lives in the path.
func (n *Novel) Fields() map[string]any {
	return map[string]any{
		"title":         n.Title,
		"author":        n.Author,
		"coverImage":    n.CoverImage,
		"genre":         n.Genre,
		"status":        string(n.Status),
		"rating":        n.Rating,
		"views":         n.Views,
		"totalChapters": n.TotalChapters,
		"summary":       n.Summary,
		"featured":      n.Featured,
		"published":     n.Published,
		"createdAt":     n.CreatedAt,
	}
}

type Chapter struct {
	ID        string `json:"id" firestore:"id"`
	Number    int    `json:"number" firestore:"number"`
	Title     string `json:"title" firestore:"title"`
	Content   string `json:"content,omitempty" firestore:"content"`
	IsPremium bool   `json:"is_premium" firestore:"isPremium"`
}

func (c *Chapter) Fields() map[string]any {
	return map[string]any{
		"id":        c.ID,
		"number":    c.Number,
		"title":     c.Title,
		"content":   c.Content,
		"isPremium": c.IsPremium,
	}
}

func (c *Chapter) Summary() ChapterSummary {
	return ChapterSummary{ID: c.ID, Number: c.Number, Title: c.Title, IsPremium: c.IsPremium}
}

type ChapterSummary struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	IsPremium bool   `json:"is_premium"`
}

type Membership struct {
	UserID       string    `json:"user_id" firestore:"userId"`
	PaymentID    string    `json:"payment_id" firestore:"paymentId"`
	Amount       int64     `json:"amount" firestore:"amount"`
	Currency     string    `json:"currency" firestore:"currency"`
	PurchaseDate time.Time `json:"purchase_date" firestore:"purchaseDate"`
	ExpiryDate   time.Time `json:"expiry_date" firestore:"expiryDate"`
}

func (m *Membership) Fields() map[string]any {
	return map[string]any{
		"userId":       m.UserID,
		"paymentId":    m.PaymentID,
		"amount":       m.Amount,
		"currency":     m.Currency,
		"purchaseDate": m.PurchaseDate,
		"expiryDate":   m.ExpiryDate,
	}
}

func (m *Membership) ActiveAt(now time.Time) bool {
	return m.ExpiryDate.After(now)
}

const (
	RoleReader = "reader"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

type User struct {
	ID          string    `json:"id" firestore:"-"`
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"display_name" firestore:"displayName"`
	PhotoURL    string    `json:"photo_url" firestore:"photoURL"`
	Role        string    `json:"role" firestore:"role"`
	LastLogin   time.Time `json:"last_login" firestore:"lastLogin"`
}

type HistoryEntry struct {
	NovelID      string    `json:"novelId" firestore:"novelId" validate:"required"`
	ChapterID    string    `json:"chapterId" firestore:"chapterId" validate:"required"`
	NovelTitle   string    `json:"novelTitle" firestore:"novelTitle"`
	ChapterTitle string    `json:"chapterTitle" firestore:"chapterTitle"`
	Timestamp    time.Time `json:"timestamp" firestore:"timestamp"`
}

func (h HistoryEntry) Fields() map[string]any {
	return map[string]any{
		"novelId":      h.NovelID,
		"chapterId":    h.ChapterID,
		"novelTitle":   h.NovelTitle,
		"chapterTitle": h.ChapterTitle,
		"timestamp":    h.Timestamp,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type FeedPageResponse struct {
	Novels          []Novel `json:"novels"`
	HasMore         bool    `json:"has_more"`
	ConnectionError bool    `json:"connection_error"`
}

type FeedStateResponse struct {
	Novels          []Novel `json:"novels"`
	HasMore         bool    `json:"has_more"`
	Loading         bool    `json:"loading"`
	ConnectionError bool    `json:"connection_error"`
	LastError       string  `json:"last_error,omitempty"`
	Attempts        int     `json:"attempts"`
}

type HandleLoadFeedParams struct {
	PageSize int `json:"page_size" validate:"omitempty,min=1,max=50"`
}

type HandleToggleBookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
}

type HandleGetBookmarksResponse struct {
	Bookmarks []string `json:"bookmarks"`
}

type HandleAddToHistoryParams struct {
	NovelID      string `json:"novel_id" validate:"required"`
	ChapterID    string `json:"chapter_id" validate:"required"`
	NovelTitle   string `json:"novel_title"`
	ChapterTitle string `json:"chapter_title"`
}

type HandleGetHistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

type HandleUpdateProgressParams struct {
	Fraction *float64 `json:"fraction" validate:"required"`
}

type HandleGetProgressResponse struct {
	Fraction float64 `json:"fraction"`
}

type HandleGetChaptersResponse struct {
	Chapters []ChapterSummary `json:"chapters"`
}

type HandleMembershipStateResponse struct {
	State      string      `json:"state"`
	Membership *Membership `json:"membership,omitempty"`
}

type HandleCheckoutResponse struct {
	Url string `json:"url"`
}

type HandleConfirmMembershipParams struct {
	Token string `json:"token" validate:"required"`
}

type HandleCreateNovelRequest struct {
	Title         string `validate:"required"`
	Author        string `validate:"required"`
	Genre         string `validate:"required"`
	Summary       string `validate:"required"`
	Status        string `validate:"omitempty,oneof=Ongoing Completed"`
	TotalChapters int    `validate:"min=0"`
	Featured      bool
}

type HandleCreateNovelResponse struct {
	ID string `json:"id"`
}

type HandlePublishNovelParams struct {
	Published *bool `json:"published" validate:"required"`
}

type HandleAddChapterParams struct {
	Number    int    `json:"number" validate:"min=1"`
	Title     string `json:"title" validate:"required"`
	Content   string `json:"content" validate:"required"`
	IsPremium bool   `json:"is_premium"`
}

type HandleAddChapterResponse struct {
	ID string `json:"id"`
}

type SocketMessage struct {
	Type   string  `json:"type"`
	Term   string  `json:"term,omitempty"`
	Novels []Novel `json:"novels,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type HandleSearchResponse struct {
	Novels []Novel `json:"novels"`
}

type HandleSearchHistoryResponse struct {
	Terms []string `json:"terms"`
}

type Preferences struct {
	Theme    string `json:"theme" validate:"omitempty,oneof=light dark"`
	FontSize string `json:"font_size" validate:"omitempty,numeric"`
	LastView string `json:"last_view" validate:"omitempty,max=64"`
}

type HandleRegisterParams struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
}

type HandleLoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type HandleAuthResponse struct {
	ID string `json:"id"`
}
