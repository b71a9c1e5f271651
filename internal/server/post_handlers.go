package server

import (
	"io"
	"mime/multipart"
	"strings"

	"pettit/internal/models"
	"pettit/internal/service"
	"pettit/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Global feed, optionally filtered by community name, tag or search term
// @Tags posts
// @Produce json
// @Param community query string false "Community name"
// @Param tag query string false "Tag"
// @Param search query string false "Title or content substring"
// @Param sort query string false "new, hot or top"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} FeedPageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePage(c, service.DefaultPageSize)

	feed, err := s.feedService.QueryFeed(c.UserContext(), service.FeedQuery{
		Scope:         service.ScopeGlobal,
		CommunityName: c.Query("community"),
		Tag:           c.Query("tag"),
		Search:        c.Query("search"),
		Sort:          service.FeedSort(c.Query("sort")),
		Page:          page.Page,
		PageSize:      page.Limit,
		ViewerID:      viewerID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toFeedPage(feed))
}

// GetTrendingPosts handles GET /api/posts/trending
// @Summary Trending posts
// @Tags posts
// @Produce json
// @Param timeframe query string false "1h, 24h or 7d"
// @Param limit query int false "Result cap"
// @Success 200 {object} object{posts=[]PostSummary,timeframe=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/trending [get]
func (s *Server) GetTrendingPosts(c *fiber.Ctx) error {
	timeframe := c.Query("timeframe")
	posts, err := s.trendingService.Trending(c.UserContext(), timeframe, c.QueryInt("limit", service.DefaultTrendingLimit), viewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	tf, _, _ := service.TrendingWindow(timeframe)
	return c.JSON(fiber.Map{
		"posts":     toPostSummaries(posts),
		"timeframe": tf,
	})
}

// SearchPosts handles GET /api/posts/search?q=...
// @Summary Search posts, communities and users
// @Tags posts
// @Produce json
// @Param q query string true "Search term"
// @Param type query string false "all, posts, communities or users"
// @Param sort query string false "relevance, new or top"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	result, err := s.searchService.Search(c.UserContext(), service.SearchQuery{
		Term:     c.Query("q"),
		Type:     service.SearchType(c.Query("type")),
		Sort:     service.SearchSort(c.Query("sort")),
		ViewerID: viewerID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toSearchResponse(result))
}

// GetSavedPosts handles GET /api/posts/saved
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	page := parsePage(c, service.DefaultPageSize)

	feed, err := s.feedService.QueryFeed(c.UserContext(), service.FeedQuery{
		Scope:    service.ScopeSaved,
		Sort:     service.FeedSort(c.Query("sort")),
		Page:     page.Page,
		PageSize: page.Limit,
		ViewerID: c.Locals("userID").(uint),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toFeedPage(feed))
}

// GetUserPosts handles GET /api/posts/user/:userId
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePage(c, service.DefaultPageSize)

	feed, err := s.feedService.QueryFeed(c.UserContext(), service.FeedQuery{
		Scope:    service.ScopeAuthor,
		AuthorID: authorID,
		Sort:     service.FeedSort(c.Query("sort")),
		Page:     page.Page,
		PageSize: page.Limit,
		ViewerID: viewerID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toFeedPage(feed))
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Description Returns the post and counts the view
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostSummary
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toPostSummary(post))
}

type createPostRequest struct {
	Title       string   `json:"title" form:"title"`
	Content     string   `json:"content" form:"content"`
	SubredditID uint     `json:"subredditId" form:"subredditId"`
	Tags        []string `json:"tags" form:"tags"`
}

// CreatePost handles POST /api/posts. Multipart requests may attach image
// files under the "media" field.
// @Summary Create a post
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param subredditId formData int true "Community ID"
// @Param tags formData string false "Comma separated tags"
// @Param media formData file false "Image attachments"
// @Success 201 {object} PostSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	var uploads []storage.Upload
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		uploads, err = readUploads(form.File["media"])
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewFieldValidationError("Could not read uploaded file",
					models.FieldError{Field: "media", Message: err.Error()}))
		}
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:    userID,
		CommunityID: req.SubredditID,
		Title:       req.Title,
		Content:     req.Content,
		Tags:        splitTags(req.Tags),
		Uploads:     uploads,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPostSummary(post))
}

func readUploads(files []*multipart.FileHeader) ([]storage.Upload, error) {
	uploads := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     data,
		})
	}
	return uploads, nil
}

// splitTags accepts both repeated tag fields and a comma separated list.
func splitTags(raw []string) []string {
	var out []string
	for _, r := range raw {
		out = append(out, strings.Split(r, ",")...)
	}
	return out
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{title=string,content=string,tags=[]string} true "Fields to change"
// @Success 200 {object} PostSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title   *string   `json:"title"`
		Content *string   `json:"content"`
		Tags    *[]string `json:"tags"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		ActorID: userID,
		PostID:  postID,
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toPostSummary(post))
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), userID, postID); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VotePost handles POST /api/posts/:id/vote
// @Summary Vote on a post
// @Description Voting the same way twice removes the vote
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{voteType=string} true "upvote, downvote or remove"
// @Success 200 {object} models.VoteResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/vote [post]
func (s *Server) VotePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		VoteType string `json:"voteType"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	action := models.VoteAction(strings.ToLower(strings.TrimSpace(req.VoteType)))
	result, err := s.voteService.ApplyVote(c.UserContext(), postID, userID, action)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// SavePost handles POST /api/posts/:id/save
func (s *Server) SavePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	saved, err := s.voteService.ToggleSave(c.UserContext(), postID, userID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"saved": saved})
}

// ReportPost handles POST /api/posts/:id/report
func (s *Server) ReportPost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	if err := s.postService.ReportPost(c.UserContext(), userID, postID, req.Reason); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Post reported"})
}

// ModeratePost handles POST /api/posts/:id/moderate
// @Summary Pin, lock or remove a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{isPinned=bool,isLocked=bool,isRemoved=bool,reason=string} true "Flags to change"
// @Success 200 {object} PostSummary
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/moderate [post]
func (s *Server) ModeratePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		IsPinned  *bool  `json:"isPinned"`
		IsLocked  *bool  `json:"isLocked"`
		IsRemoved *bool  `json:"isRemoved"`
		Reason    string `json:"reason"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.ModeratePost(c.UserContext(), service.ModeratePostInput{
		ActorID: userID,
		PostID:  postID,
		Pinned:  req.IsPinned,
		Locked:  req.IsLocked,
		Removed: req.IsRemoved,
		Reason:  req.Reason,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toPostSummary(post))
}
