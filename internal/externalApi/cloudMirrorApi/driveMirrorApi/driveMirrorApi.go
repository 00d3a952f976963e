package driveMirrorApi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType  = "application/vnd.google-apps.folder"
	jsonMimeType    = "application/json"
	portfolioPrefix = "portfolio_"
	watchlistPrefix = "watchlist_"
)

// DriveMirrorApi mirrors holdings and watchlist entries to a per-user
// Drive folder, one JSON document per symbol. Writes are last-writer-wins,
// there are no transactions and no concurrency tokens.
type DriveMirrorApi struct {
	srv *drive.Service

	mu        sync.Mutex
	folderIDs map[string]string // userID -> folder file ID
}

func New(ctx context.Context, cfg *config.Config) *DriveMirrorApi {
	srv, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.GoogleDrive.CredentialsFile))
	if err != nil {
		slog.Error("failed on drive.NewService")
		panic(err)
	}
	return &DriveMirrorApi{srv: srv, folderIDs: make(map[string]string)}
}

func (a *DriveMirrorApi) SetHolding(ctx context.Context, userID string, holding model.MirrorHolding) error {
	return a.setDocument(ctx, userID, portfolioPrefix+holding.Symbol+".json", holding)
}

func (a *DriveMirrorApi) DeleteHolding(ctx context.Context, userID, symbol string) error {
	return a.deleteDocument(ctx, userID, portfolioPrefix+symbol+".json")
}

func (a *DriveMirrorApi) GetAllHoldings(ctx context.Context, userID string) ([]model.MirrorHolding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DriveMirrorApi.GetAllHoldings"

	slog.Debug("GetAllHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))

	files, err := a.listDocuments(ctx, userID, portfolioPrefix)
	if err != nil {
		return nil, err
	}

	holdings := make([]model.MirrorHolding, 0, len(files))
	for _, f := range files {
		var holding model.MirrorHolding
		if err := a.downloadDocument(ctx, f.Id, &holding); err != nil {
			slog.Error(
				"failed to download mirror document, skipping",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("fileID", f.Id),
				slog.String("err", err.Error()),
			)
			continue
		}
		holdings = append(holdings, holding)
	}

	slog.Debug("GetAllHoldings completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(holdings)))

	return holdings, nil
}

func (a *DriveMirrorApi) SetWatchlistEntry(ctx context.Context, userID, symbol string) error {
	entry := model.MirrorWatchlistEntry{Symbol: symbol}
	return a.setDocument(ctx, userID, watchlistPrefix+symbol+".json", entry)
}

func (a *DriveMirrorApi) DeleteWatchlistEntry(ctx context.Context, userID, symbol string) error {
	return a.deleteDocument(ctx, userID, watchlistPrefix+symbol+".json")
}

func (a *DriveMirrorApi) GetAllWatchlistEntries(ctx context.Context, userID string) ([]model.MirrorWatchlistEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DriveMirrorApi.GetAllWatchlistEntries"

	slog.Debug("GetAllWatchlistEntries start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))

	files, err := a.listDocuments(ctx, userID, watchlistPrefix)
	if err != nil {
		return nil, err
	}

	entries := make([]model.MirrorWatchlistEntry, 0, len(files))
	for _, f := range files {
		var entry model.MirrorWatchlistEntry
		if err := a.downloadDocument(ctx, f.Id, &entry); err != nil {
			slog.Error(
				"failed to download mirror document, skipping",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("fileID", f.Id),
				slog.String("err", err.Error()),
			)
			continue
		}
		entries = append(entries, entry)
	}

	slog.Debug("GetAllWatchlistEntries completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(entries)))

	return entries, nil
}

func (a *DriveMirrorApi) setDocument(ctx context.Context, userID, name string, doc any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DriveMirrorApi.setDocument"

	slog.Debug("setDocument start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))

	folderID, err := a.userFolderID(ctx, userID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal mirror document %s: %w", name, err)
	}

	existing, err := a.findDocument(ctx, folderID, name)
	if err != nil && !errors.Is(err, externalApi.ErrNotFound) {
		return err
	}

	if existing != nil {
		_, err = a.srv.Files.
			Update(existing.Id, &drive.File{}).
			Media(bytes.NewReader(body)).
			Context(ctx).
			Do()
	} else {
		fileMeta := &drive.File{
			Name:     name,
			MimeType: jsonMimeType,
			Parents:  []string{folderID},
		}
		_, err = a.srv.Files.
			Create(fileMeta).
			Media(bytes.NewReader(body)).
			Context(ctx).
			Do()
	}
	if err != nil {
		slog.Error("failed on uploading mirror document", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("setDocument completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))

	return nil
}

func (a *DriveMirrorApi) deleteDocument(ctx context.Context, userID, name string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DriveMirrorApi.deleteDocument"

	slog.Debug("deleteDocument start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))

	folderID, err := a.userFolderID(ctx, userID)
	if err != nil {
		return err
	}

	existing, err := a.findDocument(ctx, folderID, name)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return nil
		}
		return err
	}

	err = a.srv.Files.Delete(existing.Id).Context(ctx).Do()
	if err != nil {
		slog.Error("failed to delete mirror document", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("deleteDocument completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))

	return nil
}

func (a *DriveMirrorApi) listDocuments(ctx context.Context, userID, prefix string) ([]*drive.File, error) {
	folderID, err := a.userFolderID(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("'%s' in parents and name contains '%s' and trashed = false", folderID, prefix)
	r, err := a.srv.Files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	files := make([]*drive.File, 0, len(r.Files))
	for _, f := range r.Files {
		if strings.HasPrefix(f.Name, prefix) {
			files = append(files, f)
		}
	}

	return files, nil
}

func (a *DriveMirrorApi) findDocument(ctx context.Context, folderID, name string) (*drive.File, error) {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false", folderID, name)
	r, err := a.srv.Files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(r.Files) == 0 {
		return nil, externalApi.ErrNotFound
	}
	return r.Files[0], nil
}

func (a *DriveMirrorApi) downloadDocument(ctx context.Context, fileID string, dest any) error {
	resp, err := a.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, dest)
}

// userFolderID resolves (creating if needed) the user's mirror folder.
// Folder IDs are cached for the life of the process.
func (a *DriveMirrorApi) userFolderID(ctx context.Context, userID string) (string, error) {
	a.mu.Lock()
	if id, ok := a.folderIDs[userID]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	folderName := "apexinvest_" + userID
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", folderName, folderMimeType)
	r, err := a.srv.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}

	var folderID string
	if len(r.Files) > 0 {
		folderID = r.Files[0].Id
	} else {
		folder, err := a.srv.Files.
			Create(&drive.File{Name: folderName, MimeType: folderMimeType}).
			Context(ctx).
			Do()
		if err != nil {
			return "", err
		}
		folderID = folder.Id
	}

	a.mu.Lock()
	a.folderIDs[userID] = folderID
	a.mu.Unlock()

	return folderID, nil
}
