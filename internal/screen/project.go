package screen

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/view"
)

type ExitReason int

const (
	NotExited ExitReason = iota
	ExitRemoved
	ExitDeleted
)

func (r ExitReason) String() string {
	switch r {
	case ExitRemoved:
		return "removed from project"
	case ExitDeleted:
		return "project deleted"
	default:
		return "open"
	}
}

// Project shows one project's members and its tasks for a day. It listens on
// the project's private channel and exits when the viewer is removed or the
// project is deleted.
type Project struct {
	*base
	id      int64
	date    string
	members *view.Store[model.User]
	tasks   *view.Store[model.Task]

	mu     sync.Mutex
	name   string
	exit   ExitReason
	exited chan struct{}
}

type ProjectSnapshot struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Members []model.User `json:"members"`
	Tasks   []model.Task `json:"tasks"`
	Exit    string       `json:"exit,omitempty"`
}

func NewProject(env Env, id int64, date string) *Project {
	p := &Project{base: newBase("project", env), id: id, date: date, exited: make(chan struct{})}
	p.members = view.NewCommitStore("project-members", reconcile.ByID[model.User](), p.fetch)
	p.tasks = view.NewStore[model.Task]("project-tasks", reconcile.ByID[model.Task](), nil)
	p.tasks.SetFilter(func(t model.Task) bool {
		return t.ProjectID != nil && *t.ProjectID == id && (date == "" || t.Day() == date)
	})

	channel := events.ProjectChannel(id)
	p.listenPrivate(channel, events.NameProjectMemberRemoved, p.onProject, id)
	p.listenPrivate(channel, events.NameProjectDeleted, p.onProject, id)
	for _, name := range []string{events.NameTaskCreated, events.NameTaskUpdated, events.NameTaskDeleted} {
		p.listen(events.ChannelTasks, name, p.onTask, id, date)
	}

	p.onClose(p.members.Close)
	p.onClose(p.tasks.Close)
	p.poll(p.members.Refresh)
	return p
}

// fetch loads the project once. Its name and tasks are committed only when the
// member snapshot is accepted, so a stale response leaves both stores alone.
func (p *Project) fetch(ctx context.Context) ([]model.User, func(), error) {
	project, err := p.env.API.GetProject(ctx, p.id, p.date)
	if err != nil {
		return nil, nil, err
	}
	commit := func() {
		p.mu.Lock()
		p.name = project.Name
		p.mu.Unlock()
		p.tasks.Seed(project.Tasks)
	}
	return project.Members, commit, nil
}

func (p *Project) onProject(ev events.Event) {
	switch e := ev.(type) {
	case events.ProjectMemberRemoved:
		if e.UserID == p.env.Session.UserID {
			p.leave(ExitRemoved)
			return
		}
		// leaving a project is not deleting the user; no tombstone
		p.members.Remove(e.UserID)
	case events.ProjectDeleted:
		p.leave(ExitDeleted)
	}
}

func (p *Project) onTask(ev events.Event) {
	switch e := ev.(type) {
	case events.TaskCreated:
		p.tasks.Created(e.Task)
	case events.TaskUpdated:
		p.tasks.Updated(e.Task)
	case events.TaskDeleted:
		p.tasks.Deleted(e.ID)
		p.goRefresh(p.members.Refresh)
	}
}

// leave records why the screen went away and closes it. Close runs off the
// reader goroutine since it waits for listeners to be released.
func (p *Project) leave(reason ExitReason) {
	p.mu.Lock()
	if p.exit != NotExited {
		p.mu.Unlock()
		return
	}
	p.exit = reason
	close(p.exited)
	p.mu.Unlock()

	glog.V(1).Infof("[screen]project %d: %s", p.id, reason)
	go p.Close()
}

// Exited is closed once the screen has been navigated away from.
func (p *Project) Exited() <-chan struct{} { return p.exited }

func (p *Project) ExitReason() ExitReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

func (p *Project) ProjectName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *Project) Refresh(ctx context.Context) error { return p.members.Refresh(ctx) }

func (p *Project) Members() []model.User { return p.members.Items() }

func (p *Project) Tasks() []model.Task { return p.tasks.Items() }

func (p *Project) Changes() (<-chan struct{}, func()) {
	return mergeChanges(p.members.Subscribe, p.tasks.Subscribe)
}

func (p *Project) Snapshot() any {
	s := ProjectSnapshot{ID: p.id, Name: p.ProjectName(), Members: p.members.Items(), Tasks: p.tasks.Items()}
	if reason := p.ExitReason(); reason != NotExited {
		s.Exit = reason.String()
	}
	return s
}
