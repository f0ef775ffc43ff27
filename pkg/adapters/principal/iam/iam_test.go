package iam

import (
	"testing"

	crm "google.golang.org/api/cloudresourcemanager/v1"
)

func TestReplaceMembers(t *testing.T) {
	role := "projects/p/roles/gametuner.clientAdmin"
	policy := &crm.Policy{Bindings: []*crm.Binding{
		{Role: "roles/viewer", Members: []string{"user:v@x.io"}},
		{Role: role, Members: []string{"user:old@x.io"}},
	}}
	ReplaceMembers(policy, role, []string{"user:a@x.io", "group:g@x.io"})
	if got := policy.Bindings[1].Members; len(got) != 2 || got[0] != "user:a@x.io" {
		t.Fatalf("members not replaced: %v", got)
	}
	if len(policy.Bindings[0].Members) != 1 {
		t.Fatal("other bindings must be untouched")
	}

	empty := &crm.Policy{}
	ReplaceMembers(empty, role, []string{"user:a@x.io"})
	if len(empty.Bindings) != 1 || empty.Bindings[0].Role != role {
		t.Fatalf("binding not added: %+v", empty.Bindings)
	}
}
