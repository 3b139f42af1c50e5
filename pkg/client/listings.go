package client

import (
	"net/url"
	"strconv"

	"github.com/nforsman/booru-client/pkg/iterator"
)

// ListPosts builds the posts iterator for a tag query. Base search tags are
// merged in when includeBaseTags is set; the combined tag budget is
// validated before any network call. overwriteCache forces a full refetch.
func (c *Client) ListPosts(tags []string, filters []iterator.Filter, includeBaseTags, overwriteCache bool) (*iterator.IDIterator, error) {
	combined := tags
	if includeBaseTags {
		combined = append(append([]string(nil), c.cfg.BaseSearchTags...), tags...)
	}

	endpoint, err := c.Endpoint(CategoryPosts)
	if err != nil {
		return nil, err
	}

	return iterator.NewPosts(iterator.PostsConfig{
		API:         c,
		Endpoint:    endpoint,
		Tags:        combined,
		Filters:     filters,
		Limit:       c.cfg.PageSize,
		ClearOnInit: overwriteCache,
	})
}

// ListFavorites iterates a user's favorites. An empty userID lists the
// authenticated user's own.
func (c *Client) ListFavorites(userID string) (*iterator.PageIterator, error) {
	params := url.Values{}
	if userID != "" {
		params.Set("user_id", userID)
	}
	return c.listPages(CategoryFavorites, "favorites", params)
}

// PostFlagSearch narrows a post flag listing. Zero fields are omitted.
type PostFlagSearch struct {
	PostID      string
	CreatorID   string
	CreatorName string
}

// ListPostFlags iterates post flags matching the search.
func (c *Client) ListPostFlags(search PostFlagSearch) (*iterator.PageIterator, error) {
	params := url.Values{}
	setSearch(params, "post_id", search.PostID)
	setSearch(params, "creator_id", search.CreatorID)
	setSearch(params, "creator_name", search.CreatorName)
	return c.listPages(CategoryPostFlags, "post_flags", params)
}

// NoteSearch narrows a note listing. Zero fields are omitted.
type NoteSearch struct {
	BodyMatches   string
	PostID        string
	PostTagsMatch string
	CreatorName   string
	CreatorID     string
	IsActive      *bool
}

// ListNotes iterates notes matching the search.
func (c *Client) ListNotes(search NoteSearch) (*iterator.PageIterator, error) {
	params := url.Values{}
	setSearch(params, "body_matches", search.BodyMatches)
	setSearch(params, "post_id", search.PostID)
	setSearch(params, "post_tags_match", search.PostTagsMatch)
	setSearch(params, "creator_name", search.CreatorName)
	setSearch(params, "creator_id", search.CreatorID)
	if search.IsActive != nil {
		setSearch(params, "is_active", strconv.FormatBool(*search.IsActive))
	}
	return c.listPages(CategoryNotes, "notes", params)
}

// TagSearch narrows a tag listing. Zero fields are omitted.
type TagSearch struct {
	NameMatches string
	Category    *int
	Order       string
	HideEmpty   *bool
	HasWiki     *bool
	HasArtist   *bool
}

// ListTags iterates tags matching the search.
func (c *Client) ListTags(search TagSearch) (*iterator.PageIterator, error) {
	params := url.Values{}
	setSearch(params, "name_matches", search.NameMatches)
	if search.Category != nil {
		setSearch(params, "category", strconv.Itoa(*search.Category))
	}
	setSearch(params, "order", search.Order)
	if search.HideEmpty != nil {
		setSearch(params, "hide_empty", strconv.FormatBool(*search.HideEmpty))
	}
	if search.HasWiki != nil {
		setSearch(params, "has_wiki", strconv.FormatBool(*search.HasWiki))
	}
	if search.HasArtist != nil {
		setSearch(params, "has_artist", strconv.FormatBool(*search.HasArtist))
	}
	return c.listPages(CategoryTags, "tags", params)
}

// TagAliasSearch narrows a tag alias listing. Zero fields are omitted.
type TagAliasSearch struct {
	NameMatches    string
	AntecedentName string
	ConsequentName string
	Status         string
	Order          string
}

// ListTagAliases iterates tag aliases matching the search.
func (c *Client) ListTagAliases(search TagAliasSearch) (*iterator.PageIterator, error) {
	params := url.Values{}
	setSearch(params, "name_matches", search.NameMatches)
	setSearch(params, "antecedent_name", search.AntecedentName)
	setSearch(params, "consequent_name", search.ConsequentName)
	setSearch(params, "status", search.Status)
	setSearch(params, "order", search.Order)
	return c.listPages(CategoryTagAliases, "tag_aliases", params)
}

func (c *Client) listPages(category, kind string, params url.Values) (*iterator.PageIterator, error) {
	endpoint, err := c.Endpoint(category)
	if err != nil {
		return nil, err
	}
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))
	return iterator.NewPage(iterator.Config{
		API:      c,
		Endpoint: endpoint,
		Kind:     kind,
		Params:   params,
	})
}

func setSearch(params url.Values, key, value string) {
	if value == "" {
		return
	}
	params.Set("search["+key+"]", value)
}
