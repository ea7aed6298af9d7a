package session

import "hash/fnv"

// Agent describes the human taking over an escalated call.
type Agent struct {
	ID         string `json:"agent_id"`
	Name       string `json:"agent_name"`
	Department string `json:"department"`
}

// AgentPool assigns agents deterministically: the same call always maps
// to the same agent, so a reconnect cannot flip the assignment.
type AgentPool struct {
	agents []Agent
}

func NewAgentPool(agents []Agent) *AgentPool {
	if len(agents) == 0 {
		agents = []Agent{
			{ID: "A1", Name: "Sara", Department: "Claims"},
			{ID: "A2", Name: "Marc", Department: "Legal"},
			{ID: "A3", Name: "Inès", Department: "Support"},
		}
	}
	return &AgentPool{agents: agents}
}

// Assign picks the agent for a call by hashing its ID over the pool.
func (p *AgentPool) Assign(callID string) Agent {
	h := fnv.New32a()
	h.Write([]byte(callID))
	return p.agents[h.Sum32()%uint32(len(p.agents))]
}
