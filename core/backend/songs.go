package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"StemDeck/core/apperr"
	"StemDeck/logger"
	"StemDeck/model"
)

// FileList accepts both `["a.mp3"]` and `[{"filename": "a.mp3"}]`.
type FileList []string

func (f *FileList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(FileList, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, name)
			continue
		}
		var obj struct {
			Filename string `json:"filename"`
			Name     string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Filename != "" {
			out = append(out, obj.Filename)
		} else if obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	*f = out
	return nil
}

// UploadRequest is one multipart upload.
type UploadRequest struct {
	FileName      string
	Content       io.Reader
	TermsAccepted bool
	Stems         []string
}

// UploadRecord is the remote-storage response shape.
type UploadRecord struct {
	Title   string   `json:"title"`
	Files   FileList `json:"files"`
	SongID  string   `json:"songId"`
	OwnerID string   `json:"ownerId"`
}

// UploadResult holds exactly one of Record or Archive.
type UploadResult struct {
	Record   *UploadRecord
	Archive  []byte
	CacheKey string
}

// Song is one entry of /my-songs.
type Song struct {
	SongID    string          `json:"songId"`
	Title     string          `json:"title"`
	Files     FileList        `json:"files"`
	CreatedAt model.Timestamp `json:"createdAt"`
}

// SongListing is the /my-songs response.
type SongListing struct {
	Songs   []Song `json:"songs"`
	OwnerID string `json:"ownerId"`
}

// Upload submits a file for splitting.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", path.Base(up.FileName))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Transport, "build upload body")
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, apperr.Wrap(err, apperr.Transport, "read upload file")
	}
	_ = mw.WriteField("termsAccepted", strconv.FormatBool(up.TermsAccepted))
	if len(up.Stems) > 0 {
		_ = mw.WriteField("stems", strings.Join(up.Stems, ","))
	}
	if c.verifier != nil {
		token, err := c.verifier.Token(ctx)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.Validation, "bot verification failed")
		}
		if token != "" {
			_ = mw.WriteField("botToken", token)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.Wrap(err, apperr.Transport, "build upload body")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &buf, false)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	logger.Info("uploading track",
		logger.String("file", up.FileName),
		logger.Strings("stems", up.Stems),
		logger.Int("bytes", buf.Len()))

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp, "upload")
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var record UploadRecord
		if err := decodeJSON(resp, &record, "upload"); err != nil {
			return nil, err
		}
		return &UploadResult{Record: &record}, nil
	}

	// 本地处理模式: 返回 zip 压缩包
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Transport, "read upload archive")
	}
	return &UploadResult{Archive: data, CacheKey: resp.Header.Get("X-Cache-Key")}, nil
}

// ListSongs fetches the session owner's songs.
func (c *Client) ListSongs(ctx context.Context) (*SongListing, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/my-songs", nil, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "list songs")
	}
	var listing SongListing
	if err := decodeJSON(resp, &listing, "my-songs"); err != nil {
		return nil, err
	}
	return &listing, nil
}

// DeleteSong deletes one song. A 404 counts as success.
func (c *Client) DeleteSong(ctx context.Context, songID string) error {
	return c.deleteRequest(ctx, "/songs/"+url.PathEscape(songID), "delete song")
}

// DeleteAllSongs deletes every song of the session owner.
func (c *Client) DeleteAllSongs(ctx context.Context) error {
	return c.deleteRequest(ctx, "/songs", "delete songs")
}

// PresignedURL asks the backend for a short-lived GET URL of one file.
func (c *Client) PresignedURL(ctx context.Context, songID, filename string) (string, error) {
	body, err := json.Marshal(map[string]string{"songId": songID, "filename": filename})
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/presigned-url", bytes.NewReader(body), true)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp, "presign")
	}
	var result struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(resp, &result, "presigned-url"); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", apperr.Message(apperr.Transport, "presign returned an empty url")
	}
	return result.URL, nil
}

// DownloadSongArchive streams the zip of a stored song into w.
func (c *Client) DownloadSongArchive(ctx context.Context, songID string, w io.Writer) (int64, error) {
	return c.download(ctx, "/songs/"+url.PathEscape(songID)+"/zip", true, w)
}

// DownloadCacheArchive streams the zip of a locally processed upload into w.
func (c *Client) DownloadCacheArchive(ctx context.Context, cacheKey string, w io.Writer) (int64, error) {
	return c.download(ctx, "/cache/"+url.PathEscape(cacheKey), false, w)
}

// CacheFileURL is the stable route of one file of a cached upload.
func (c *Client) CacheFileURL(cacheKey, filename string) string {
	return c.baseURL + "/cache/" + url.PathEscape(cacheKey) + "/" + url.PathEscape(filename)
}

func (c *Client) download(ctx context.Context, route string, authenticated bool, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, route, nil, authenticated)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(resp, "download")
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return n, apperr.Wrap(err, apperr.Cancelled, "download aborted")
		}
		return n, apperr.Wrap(err, apperr.Transport, "download interrupted")
	}
	return n, nil
}
