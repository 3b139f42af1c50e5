package client

import (
	"net/url"
)

// Mutation operations are submit-only: they return the job id and callers
// decide whether to Await and inspect the response status.

// FavoritePost submits a favorite for the post.
func (c *Client) FavoritePost(postID string) (string, error) {
	endpoint, err := c.Endpoint(CategoryFavorites)
	if err != nil {
		return "", err
	}
	return c.Submit(endpoint, "POST", url.Values{"post_id": {postID}}), nil
}

// UnfavoritePost submits removal of a favorite.
func (c *Client) UnfavoritePost(postID string) (string, error) {
	endpoint, err := c.Endpoint(CategoryFavorites, postID)
	if err != nil {
		return "", err
	}
	return c.Submit(endpoint, "DELETE", nil), nil
}

// UpvotePost submits an upvote.
func (c *Client) UpvotePost(postID string) (string, error) {
	return c.votePost(postID, "1")
}

// DownvotePost submits a downvote.
func (c *Client) DownvotePost(postID string) (string, error) {
	return c.votePost(postID, "-1")
}

// UnvotePost clears this user's vote.
func (c *Client) UnvotePost(postID string) (string, error) {
	return c.votePost(postID, "0")
}

func (c *Client) votePost(postID, score string) (string, error) {
	endpoint, err := c.Endpoint(CategoryPostFlags)
	if err != nil {
		return "", err
	}
	data := url.Values{
		"post_id":   {postID},
		"score":     {score},
		"no_unvote": {"true"},
	}
	return c.Submit(endpoint, "POST", data), nil
}
