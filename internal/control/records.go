package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// handleMissionNew creates a planned manual mission. The name comes from the
// arguments or, failing that, from a prompt; an empty answer sends nothing.
func (c *Controller) handleMissionNew(ctx context.Context, a dispatcher.Action) (any, error) {
	name := strings.TrimSpace(strings.Join(a.Args, " "))
	if name == "" {
		answer, ok := c.prompter.Prompt(ctx, "Mission name?")
		name = strings.TrimSpace(answer)
		if !ok || name == "" {
			return nil, ErrCancelled
		}
	}

	m := core.NewMission{Name: name, Status: core.MissionStatusPlanned, Mode: core.MissionModeManual}
	err := c.api.CreateMission(ctx, m)
	c.record(ctx, ActionMissionNew, m, err)
	if err != nil {
		return nil, c.fail(AlertCreateFailed, err)
	}
	c.resync(ctx, syncer.Missions)
	return m, nil
}

// deleteOne is the shared shape of every single-row delete.
func (c *Controller) deleteOne(ctx context.Context, a dispatcher.Action, del func(context.Context, int64) error, resources ...syncer.Resource) (any, error) {
	id, err := c.parseID(a)
	if err != nil {
		return nil, err
	}
	err = del(ctx, id)
	c.record(ctx, a.Name, map[string]int64{"id": id}, err)
	if err != nil {
		return nil, c.fail(AlertDeleteFailed, err)
	}
	c.resync(ctx, resources...)
	return id, nil
}

func (c *Controller) deleteAll(ctx context.Context, name string, del func(context.Context) error, resources ...syncer.Resource) (any, error) {
	err := del(ctx)
	c.record(ctx, name, nil, err)
	if err != nil {
		return nil, c.fail(AlertClearFailed, err)
	}
	c.resync(ctx, resources...)
	return nil, nil
}

func (c *Controller) handleMissionDelete(ctx context.Context, a dispatcher.Action) (any, error) {
	return c.deleteOne(ctx, a, c.api.DeleteMission, syncer.Missions, syncer.Events)
}

func (c *Controller) handleEventDelete(ctx context.Context, a dispatcher.Action) (any, error) {
	return c.deleteOne(ctx, a, c.api.DeleteEvent, syncer.Events)
}

func (c *Controller) handleEventClear(ctx context.Context, a dispatcher.Action) (any, error) {
	return c.deleteAll(ctx, a.Name, c.api.DeleteAllEvents, syncer.Events)
}

func (c *Controller) handleClipDelete(ctx context.Context, a dispatcher.Action) (any, error) {
	return c.deleteOne(ctx, a, c.api.DeleteVideoClip, syncer.Clips)
}

func (c *Controller) handleClipClear(ctx context.Context, a dispatcher.Action) (any, error) {
	return c.deleteAll(ctx, a.Name, c.api.DeleteAllVideoClips, syncer.Clips)
}

func (c *Controller) handleTargetDelete(ctx context.Context, a dispatcher.Action) (any, error) {
	return c.deleteOne(ctx, a, c.api.DeleteTarget, syncer.Targets, syncer.Events)
}

func (c *Controller) handleTargetMatch(ctx context.Context, a dispatcher.Action) (any, error) {
	id, err := c.parseID(a)
	if err != nil {
		return nil, err
	}
	err = c.api.MatchTarget(ctx, id)
	c.record(ctx, a.Name, map[string]int64{"id": id}, err)
	if err != nil {
		return nil, c.fail(AlertMatchFailed, err)
	}
	c.resync(ctx, syncer.Targets, syncer.Events)
	return id, nil
}

// handleTargetMission sets the mission new uploads are attached to.
func (c *Controller) handleTargetMission(_ context.Context, a dispatcher.Action) (any, error) {
	id, err := c.parseID(a)
	if err != nil {
		return nil, err
	}
	c.state.SetTargetMission(id)
	form, _ := view.Lookup[view.UploadView](c.store, view.RegionUpload)
	form.MissionID = id
	c.store.Set(view.RegionUpload, form)
	return id, nil
}

// handleTargetUpload uploads an image. Args are path, then an optional
// label; the mission comes from the upload form. The form is cleared only
// after a successful upload.
func (c *Controller) handleTargetUpload(ctx context.Context, a dispatcher.Action) (any, error) {
	path := a.Arg(0)
	if path == "" {
		c.alerter.Alert("Choose an image to upload")
		return nil, errors.New("target.upload: no file")
	}
	var label string
	if len(a.Args) > 1 {
		label = strings.Join(a.Args[1:], " ")
	}

	form, _ := view.Lookup[view.UploadView](c.store, view.RegionUpload)
	if form.MissionID == 0 {
		form.MissionID = c.state.TargetMission()
	}
	form.Path, form.Label = path, label
	c.store.Set(view.RegionUpload, form)

	up := core.TargetUpload{Path: path, Label: label, MissionID: form.MissionID}
	err := c.api.UploadTarget(ctx, up)
	c.record(ctx, ActionTargetUpload, up, err)
	if err != nil {
		return nil, c.fail(AlertUploadFailed, err)
	}

	c.store.Set(view.RegionUpload, view.UploadView{MissionID: c.state.TargetMission()})
	c.resync(ctx, syncer.Targets, syncer.Events)
	return up, nil
}

// handleRefresh re-syncs the named resources, or all of them.
func (c *Controller) handleRefresh(ctx context.Context, a dispatcher.Action) (any, error) {
	resources := syncer.All
	if len(a.Args) > 0 {
		resources = make([]syncer.Resource, 0, len(a.Args))
		for _, name := range a.Args {
			r, err := syncer.ParseResource(name)
			if err != nil {
				c.alerter.Alert(fmt.Sprintf("Unknown resource %q, expected one of: %s", name, resourceNames()))
				return nil, err
			}
			resources = append(resources, r)
		}
	}
	if err := c.sync.Refresh(ctx, resources...); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return strconv.Itoa(len(resources)) + " refreshed", nil
}

func resourceNames() string {
	names := make([]string, len(syncer.All))
	for i, r := range syncer.All {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
