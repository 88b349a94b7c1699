package handlers

import (
	"net/http"
	"testing"

	"github.com/dailyflo/backend/internal/models"
)

func TestCreateList(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "owner@example.com", "supersecret1")

	t.Run("creates a list with defaults", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/", map[string]any{
			"name": "Groceries",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["name"] != "Groceries" {
			t.Fatalf("expected list name, got %v", data["name"])
		}
		if data["color"] != "blue" {
			t.Fatalf("expected default blue color, got %v", data["color"])
		}
		if data["isDefault"] != false {
			t.Fatalf("new lists must not be default, got %v", data["isDefault"])
		}
	})

	t.Run("rejects duplicate name for the same owner", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/", map[string]any{
			"name": "Groceries",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "a list with this name already exists")
	})

	t.Run("other owners can reuse the name", func(t *testing.T) {
		_, otherToken := createTestUser(t, env, "other@example.com", "supersecret1")
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/", map[string]any{
			"name": "Groceries",
		}, authHeaders(otherToken))
		assertStatus(t, resp, http.StatusCreated)
	})

	t.Run("rejects invalid color", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/", map[string]any{
			"name":  "Painted",
			"color": "magenta",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/", map[string]any{
			"color": "red",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
	})
}

func TestListLists(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "owner@example.com", "supersecret1")
	stranger, _ := createTestUser(t, env, "stranger@example.com", "supersecret1")

	work := createTestList(t, env, user.ID, "Work")
	createTestList(t, env, stranger.ID, "Their list")

	createTestTask(t, env, user.ID, "Ship release", &work.ID)
	done := createTestTask(t, env, user.ID, "Write notes", &work.ID)
	if err := env.db.Model(done).Update("is_completed", true).Error; err != nil {
		t.Fatalf("failed completing task: %v", err)
	}

	t.Run("returns only the caller's lists with task counts", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		lists := dataSlice(t, decodeJSONMap(t, resp))
		if len(lists) != 2 {
			t.Fatalf("expected Inbox and Work, got %d lists", len(lists))
		}

		var workEntry map[string]any
		for _, entry := range lists {
			list := entry.(map[string]any)
			if list["name"] == "Work" {
				workEntry = list
			}
			if list["name"] == "Their list" {
				t.Fatal("another owner's list leaked into the response")
			}
		}
		if workEntry == nil {
			t.Fatal("expected the Work list in the response")
		}
		if workEntry["taskCount"] != float64(2) {
			t.Fatalf("expected 2 tasks counted, got %v", workEntry["taskCount"])
		}
		if workEntry["completedTaskCount"] != float64(1) {
			t.Fatalf("expected 1 completed task, got %v", workEntry["completedTaskCount"])
		}
		if workEntry["pendingTaskCount"] != float64(1) {
			t.Fatalf("expected 1 pending task, got %v", workEntry["pendingTaskCount"])
		}
	})

	t.Run("soft-deleted lists are hidden", func(t *testing.T) {
		if err := env.db.Model(work).Update("soft_deleted", true).Error; err != nil {
			t.Fatalf("failed soft deleting list: %v", err)
		}

		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		lists := dataSlice(t, decodeJSONMap(t, resp))
		if len(lists) != 1 {
			t.Fatalf("expected only the Inbox, got %d lists", len(lists))
		}
	})
}

func TestGetList(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "owner@example.com", "supersecret1")
	stranger, _ := createTestUser(t, env, "stranger@example.com", "supersecret1")

	mine := createTestList(t, env, user.ID, "Mine")
	theirs := createTestList(t, env, stranger.ID, "Theirs")

	t.Run("returns an owned list", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/"+mine.ID.String(), nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
	})

	t.Run("missing and not-owned are indistinguishable", func(t *testing.T) {
		notOwned := performRequest(t, env.app, http.MethodGet, "/api/lists/"+theirs.ID.String(), nil, authHeaders(token))
		assertStatus(t, notOwned, http.StatusNotFound)
		notOwnedBody := decodeJSONMap(t, notOwned)

		missing := performRequest(t, env.app, http.MethodGet, "/api/lists/00000000-0000-0000-0000-000000000001", nil, authHeaders(token))
		assertStatus(t, missing, http.StatusNotFound)
		missingBody := decodeJSONMap(t, missing)

		if notOwnedBody["error"] != missingBody["error"] {
			t.Fatalf("not-owned and missing must look identical: %v vs %v", notOwnedBody["error"], missingBody["error"])
		}
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/not-a-uuid", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
	})
}

func TestUpdateList(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "owner@example.com", "supersecret1")
	list := createTestList(t, env, user.ID, "Before")
	createTestList(t, env, user.ID, "Taken")

	t.Run("renames and recolors", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/lists/"+list.ID.String(), map[string]any{
			"name":  "After",
			"color": "purple",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["name"] != "After" || data["color"] != "purple" {
			t.Fatalf("expected updated list, got %+v", data)
		}
	})

	t.Run("rename onto an existing name conflicts", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/lists/"+list.ID.String(), map[string]any{
			"name": "Taken",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusConflict)
	})

	t.Run("rename to its own name is a no-op", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/lists/"+list.ID.String(), map[string]any{
			"name": "After",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/lists/"+list.ID.String(), map[string]any{
			"name": "   ",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
	})
}

func TestSetDefaultList(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "owner@example.com", "supersecret1")
	promoted := createTestList(t, env, user.ID, "New default")

	countDefaults := func() int64 {
		var count int64
		err := env.db.Model(&models.List{}).
			Where("owner_id = ? AND is_default = ? AND soft_deleted = ?", user.ID, true, false).
			Count(&count).Error
		if err != nil {
			t.Fatalf("failed counting defaults: %v", err)
		}
		return count
	}

	t.Run("swaps the default atomically", func(t *testing.T) {
		if got := countDefaults(); got != 1 {
			t.Fatalf("expected exactly one default before the swap, got %d", got)
		}

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/"+promoted.ID.String()+"/set-default", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["isDefault"] != true {
			t.Fatalf("expected promoted list to be default, got %+v", data)
		}
		if got := countDefaults(); got != 1 {
			t.Fatalf("expected exactly one default after the swap, got %d", got)
		}
	})

	t.Run("promoting the current default keeps a single default", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/"+promoted.ID.String()+"/set-default", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
		if got := countDefaults(); got != 1 {
			t.Fatalf("expected exactly one default, got %d", got)
		}
	})

	t.Run("unknown list leaves the default untouched", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/00000000-0000-0000-0000-000000000001/set-default", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusNotFound)
		if got := countDefaults(); got != 1 {
			t.Fatalf("the failed swap must not drop the default, got %d", got)
		}
	})

	t.Run("get default follows the swap", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/default", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, decodeJSONMap(t, resp))
		if data["name"] != "New default" {
			t.Fatalf("expected the promoted list, got %v", data["name"])
		}
	})
}

func TestDeleteList(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "owner@example.com", "supersecret1")
	list := createTestList(t, env, user.ID, "Doomed")
	kept := createTestTask(t, env, user.ID, "Survivor", &list.ID)

	t.Run("requires confirmation", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodDelete, "/api/lists/"+list.ID.String(), map[string]any{}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("soft deletes and detaches tasks", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodDelete, "/api/lists/"+list.ID.String(), map[string]any{
			"confirm": true,
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["tasksDetached"] != float64(1) {
			t.Fatalf("expected one detached task, got %v", data["tasksDetached"])
		}

		var task models.Task
		if err := env.db.First(&task, "id = ?", kept.ID).Error; err != nil {
			t.Fatalf("the task must survive its list: %v", err)
		}
		if task.ListID != nil {
			t.Fatalf("expected task detached to the inbox, got list %v", task.ListID)
		}
		if task.SoftDeleted {
			t.Fatal("detached tasks must stay live")
		}

		var deleted models.List
		if err := env.db.First(&deleted, "id = ?", list.ID).Error; err != nil {
			t.Fatalf("soft delete must keep the row: %v", err)
		}
		if !deleted.SoftDeleted {
			t.Fatal("expected the list to be marked deleted")
		}
	})

	t.Run("deleting again is a 404", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodDelete, "/api/lists/"+list.ID.String(), map[string]any{
			"confirm": true,
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusNotFound)
	})

	t.Run("a deleted list frees its name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/lists/", map[string]any{
			"name": "Doomed",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusCreated)
	})
}

func TestListTasks(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "owner@example.com", "supersecret1")
	list := createTestList(t, env, user.ID, "Errands")

	createTestTask(t, env, user.ID, "Pending", &list.ID)
	done := createTestTask(t, env, user.ID, "Done", &list.ID)
	if err := env.db.Model(done).Update("is_completed", true).Error; err != nil {
		t.Fatalf("failed completing task: %v", err)
	}
	hidden := createTestTask(t, env, user.ID, "Hidden", &list.ID)
	if err := env.db.Model(hidden).Update("soft_deleted", true).Error; err != nil {
		t.Fatalf("failed soft deleting task: %v", err)
	}

	t.Run("returns live tasks annotated with the list", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/"+list.ID.String()+"/tasks", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		tasks := dataSlice(t, decodeJSONMap(t, resp))
		if len(tasks) != 2 {
			t.Fatalf("expected 2 live tasks, got %d", len(tasks))
		}
		first := tasks[0].(map[string]any)
		if first["listName"] != "Errands" {
			t.Fatalf("expected list name on tasks, got %v", first["listName"])
		}
	})

	t.Run("filters by completion", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/lists/"+list.ID.String()+"/tasks?completed=true", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		tasks := dataSlice(t, decodeJSONMap(t, resp))
		if len(tasks) != 1 {
			t.Fatalf("expected 1 completed task, got %d", len(tasks))
		}
	})
}
