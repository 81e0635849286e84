package content

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// payloadFile is the document a git-hosted deck keeps at its repo root.
const payloadFile = "flashcards.json"

// syncRepo clones a git repository if it doesn't exist at the given
// path, or pulls the latest changes if it does.
func syncRepo(repoURL, localPath string, logger *slog.Logger) error {
	_, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		// Path does not exist, clone the repository
		logger.Info("cloning deck repository", "url", repoURL, "path", localPath)
		_, err := git.PlainClone(localPath, false, &git.CloneOptions{
			URL: repoURL,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	} else if err == nil {
		// Path exists, pull the latest changes
		logger.Info("pulling deck repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.Pull(&git.PullOptions{RemoteName: "origin"})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	} else {
		// Some other error occurred
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// fetchFromRepo clones or updates the deck's repository under baseDir
// and reads its content document.
func fetchFromRepo(baseDir, repoURL string, logger *slog.Logger) ([]byte, error) {
	localPath, err := repoLocalPath(baseDir, repoURL)
	if err != nil {
		return nil, err
	}
	if err := syncRepo(repoURL, localPath, logger); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(localPath, payloadFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", payloadFile, repoURL, err)
	}
	return data, nil
}

// repoLocalPath maps a git URL to a stable checkout directory under
// baseDir. Both https and scp-like ssh URLs are handled.
func repoLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
