package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	attachmocks "github.com/matsen/shelf/internal/attach/mocks"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/session/mocks"
)

func TestSaveIsNotReentrant(t *testing.T) {
	ctrl := gomock.NewController(t)
	trasher := attachmocks.NewMockTrasher(ctrl)
	entered := make(chan struct{})
	release := make(chan struct{})
	trasher.EXPECT().Trash(gomock.Any()).DoAndReturn(func(string) error {
		close(entered)
		<-release
		return nil
	}).Times(1)

	s := newTestSession(t, Options{Trasher: trasher})
	src := writeFile(t, t.TempDir(), "doomed.pdf", "x")
	id := addDoc(t, s, "Doomed", "", src)
	mustSave(t, s)
	if _, err := s.DeleteDocuments([]int64{id}); err != nil {
		t.Fatal(err)
	}

	done := make(chan failure.Report, 1)
	go func() {
		report, _ := s.Save(context.Background())
		done <- report
	}()
	<-entered

	// The first save is blocked sending the file to the OS trash.
	report, err := s.Save(context.Background())
	if err != nil || !report.Skipped {
		t.Errorf("concurrent Save() = %+v, %v, want skipped", report, err)
	}
	(&AutoSaver{s: s}).tick(context.Background())

	close(release)
	first := <-done
	if first.Saved != 1 || first.Skipped {
		t.Errorf("first Save() = %+v, want 1 saved", first)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after save", s.Pending())
	}
}

func TestAutoSaverSaves(t *testing.T) {
	s := newTestSession(t, Options{})
	addDoc(t, s, "Autosaved", "")

	a := s.StartAutoSave(10 * time.Millisecond)
	deadline := time.Now().Add(5 * time.Second)
	for s.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	a.Stop()
	a.Stop()

	if s.Pending() != 0 {
		t.Fatal("auto-saver never saved")
	}
	if n, err := s.db.Count(); err != nil || n != 1 {
		t.Errorf("documents on disk = %d, %v, want 1", n, err)
	}
}

func TestClosePrompts(t *testing.T) {
	tests := []struct {
		name    string
		answer  bool
		wantDoc bool
	}{
		{"accepted saves", true, true},
		{"declined discards", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			prompter := mocks.NewMockPrompter(ctrl)
			prompter.EXPECT().ConfirmSave(1).Return(tt.answer, nil).Times(1)

			s := newTestSession(t, Options{})
			id := addDoc(t, s, "Draft", "")
			if err := s.Close(context.Background(), prompter); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			// Already closed: no second prompt.
			if err := s.Close(context.Background(), prompter); err != nil {
				t.Fatalf("second Close() error = %v", err)
			}

			s = reopen(t, s)
			_, err := s.Document(id)
			if got := err == nil; got != tt.wantDoc {
				t.Errorf("document saved = %v, want %v", got, tt.wantDoc)
			}
		})
	}
}

func TestClosePromptError(t *testing.T) {
	ctrl := gomock.NewController(t)
	prompter := mocks.NewMockPrompter(ctrl)
	prompter.EXPECT().ConfirmSave(gomock.Any()).Return(false, errors.New("no terminal"))

	s := newTestSession(t, Options{})
	addDoc(t, s, "Draft", "")
	if err := s.Close(context.Background(), prompter); err == nil {
		t.Fatal("Close() should return the prompt error")
	}
	if _, err := s.Info(); err != nil {
		t.Errorf("session should stay open after a failed prompt: %v", err)
	}
}

func TestUpdateFromDOI(t *testing.T) {
	ctrl := gomock.NewController(t)
	lookup := mocks.NewMockLookuper(ctrl)

	found := reference.New()
	found.Title = "Official Title"
	found.DOI = "10.1234/x"
	found.Abstract = "Theirs"
	found.Year = 2020
	lookup.EXPECT().Lookup(gomock.Any(), "10.1234/x").Return(found, nil).Times(1)

	s := newTestSession(t, Options{Lookup: lookup})
	doc := reference.New()
	doc.Title = "draft title"
	doc.DOI = "10.1234/x"
	doc.Abstract = "Mine"
	doc.Tags = []string{"keep"}
	doc.Read = reference.FlagTrue
	id, _ := s.AddDocument(doc)
	noDOI := addDoc(t, s, "No DOI", "")

	got, err := s.UpdateFromDOI(context.Background(), id, "")
	if err != nil {
		t.Fatalf("UpdateFromDOI() error = %v", err)
	}
	if got.Title != "Official Title" || got.Year != 2020 || got.Abstract != "Mine" {
		t.Errorf("updated = %q %d %q", got.Title, got.Year, got.Abstract)
	}
	if len(got.Tags) != 1 || !got.Read.IsTrue() || !got.Confirmed.IsTrue() {
		t.Errorf("kept state lost: tags=%v read=%v confirmed=%v", got.Tags, got.Read, got.Confirmed)
	}

	if _, err := s.UpdateFromDOI(context.Background(), noDOI, ""); !errors.Is(err, failure.ErrNotFound) {
		t.Errorf("UpdateFromDOI() without DOI error = %v, want not found", err)
	}
}
