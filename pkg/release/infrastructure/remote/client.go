package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/application/service"
)

const userAgent = "tss-release"

type createRepositoryRequest struct {
	Description string `json:"description"`
}

type repositoryResponse struct {
	RepositoryID  string `json:"repositoryId"`
	State         string `json:"state"`
	Transitioning bool   `json:"transitioning"`
}

func NewRepositoryClient(logger applogger.Logger, httpClient *http.Client) service.RemoteRepository {
	return &repositoryClient{
		logger:     logger,
		httpClient: httpClient,
	}
}

type repositoryClient struct {
	logger     applogger.Logger
	httpClient *http.Client
}

// Upload opens one staging repository and puts every file below the source paths into it, keyed by its path relative to its source root.
func (client repositoryClient) Upload(ctx context.Context, repository model.StagingRepository) (model.RemoteArtifactID, error) {
	body, err := json.Marshal(createRepositoryRequest{Description: fmt.Sprintf("%v upload", repository.Kind)})
	if err != nil {
		return "", err
	}
	var created repositoryResponse
	err = client.doJSON(ctx, repository, http.MethodPost, "staging/repositories", bytes.NewReader(body), &created)
	if err != nil {
		return "", errors.Wrap(err, "failed to open staging repository")
	}
	if created.RepositoryID == "" {
		return "", errors.New("remote returned no staging repository id")
	}
	for _, sourcePath := range repository.SourcePaths {
		err = client.uploadTree(ctx, repository, created.RepositoryID, sourcePath)
		if err != nil {
			return "", err
		}
	}
	return created.RepositoryID, nil
}

func (client repositoryClient) Close(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) error {
	return client.doJSON(ctx, repository, http.MethodPost, repositoryPath(id, "close"), nil, nil)
}

func (client repositoryClient) Status(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) (model.RepositoryState, error) {
	var status repositoryResponse
	err := client.doJSON(ctx, repository, http.MethodGet, repositoryPath(id, ""), nil, &status)
	if err != nil {
		return "", err
	}
	if status.Transitioning {
		return model.RepositoryStateOpen, nil
	}
	switch state := model.RepositoryState(strings.ToLower(status.State)); state {
	case model.RepositoryStateOpen, model.RepositoryStateClosed, model.RepositoryStateReleased, model.RepositoryStateFailed:
		return state, nil
	default:
		return "", errors.Errorf("unknown staging repository state %q", status.State)
	}
}

func (client repositoryClient) Release(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) error {
	return client.doJSON(ctx, repository, http.MethodPost, repositoryPath(id, "release"), nil, nil)
}

func (client repositoryClient) uploadTree(ctx context.Context, repository model.StagingRepository, id, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return client.uploadFile(ctx, repository, id, path, filepath.ToSlash(relative))
	})
}

func (client repositoryClient) uploadFile(ctx context.Context, repository model.StagingRepository, id, path, relative string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %v", path)
	}
	defer file.Close()
	client.logger.Debug(fmt.Sprintf("upload %v", relative))
	err = client.doJSON(ctx, repository, http.MethodPut, repositoryPath(id, "content/"+relative), file, nil)
	return errors.Wrapf(err, "failed to upload %v", relative)
}

func (client repositoryClient) doJSON(
	ctx context.Context,
	repository model.StagingRepository,
	method string,
	path string,
	body io.Reader,
	result interface{},
) error {
	endpoint, err := url.JoinPath(repository.EndpointURL, path)
	if err != nil {
		return errors.Wrapf(err, "invalid repository url %v", repository.EndpointURL)
	}
	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Accept", "application/json")
	if method == http.MethodPut {
		request.Header.Set("Content-Type", "application/octet-stream")
	} else if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if repository.Credentials.Username != "" {
		request.SetBasicAuth(repository.Credentials.Username, repository.Credentials.Password)
	}
	response, err := client.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		message, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return errors.Errorf("%v %v: %v %v", method, endpoint, response.Status, strings.TrimSpace(string(message)))
	}
	if result == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(response.Body).Decode(result), "failed to decode response of %v %v", method, endpoint)
}

func repositoryPath(id model.RemoteArtifactID, action string) string {
	p := "staging/repositories/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}
