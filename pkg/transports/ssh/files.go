package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"

	"github.com/hostwright/hostwright/pkg/transports"
)

// Upload writes content to remotePath via SFTP with the given mode.
// Parent directories are created as needed.
func (c *Client) Upload(ctx context.Context, content []byte, remotePath string, mode uint32) error {
	sftpClient, err := c.newSFTPClient()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	if err := ctx.Err(); err != nil {
		return &transports.Error{Op: "upload", Kind: transports.KindConnection, Err: err}
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return &transports.Error{
				Op:   "upload",
				Kind: transports.KindCommand,
				Err:  fmt.Errorf("failed to create remote directory %s: %w", dir, err),
			}
		}
	}

	f, err := sftpClient.Create(remotePath)
	if err != nil {
		return &transports.Error{
			Op:   "upload",
			Kind: transports.KindCommand,
			Err:  fmt.Errorf("failed to create remote file %s: %w", remotePath, err),
		}
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return &transports.Error{
			Op:        "upload",
			Kind:      transports.KindConnection,
			Temporary: true,
			Err:       fmt.Errorf("failed to write remote file %s: %w", remotePath, err),
		}
	}
	if err := f.Close(); err != nil {
		return &transports.Error{Op: "upload", Kind: transports.KindConnection, Temporary: true, Err: err}
	}

	if mode != 0 {
		if err := sftpClient.Chmod(remotePath, os.FileMode(mode)); err != nil {
			return &transports.Error{
				Op:   "upload",
				Kind: transports.KindCommand,
				Err:  fmt.Errorf("failed to chmod remote file %s: %w", remotePath, err),
			}
		}
	}

	log.Debug().Str("path", remotePath).Int("bytes", len(content)).Msg("uploaded file")
	return nil
}

// Download reads the content of remotePath via SFTP.
func (c *Client) Download(ctx context.Context, remotePath string) ([]byte, error) {
	sftpClient, err := c.newSFTPClient()
	if err != nil {
		return nil, err
	}
	defer sftpClient.Close()

	if err := ctx.Err(); err != nil {
		return nil, &transports.Error{Op: "download", Kind: transports.KindConnection, Err: err}
	}

	f, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, &transports.Error{
			Op:   "download",
			Kind: transports.KindCommand,
			Err:  fmt.Errorf("failed to open remote file %s: %w", remotePath, err),
		}
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, &transports.Error{
			Op:        "download",
			Kind:      transports.KindConnection,
			Temporary: true,
			Err:       fmt.Errorf("failed to read remote file %s: %w", remotePath, err),
		}
	}

	log.Debug().Str("path", remotePath).Int("bytes", len(content)).Msg("downloaded file")
	return content, nil
}

// newSFTPClient opens an SFTP subsystem session on the current connection.
func (c *Client) newSFTPClient() (*sftp.Client, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &transports.Error{
			Op:        "sftp",
			Kind:      transports.KindConnection,
			Temporary: true,
			Err:       fmt.Errorf("failed to create SFTP client: %w", err),
		}
	}
	return sftpClient, nil
}
