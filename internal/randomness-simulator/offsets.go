package simulator

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// pending é um pedido lido e ainda não confirmado
type pending struct {
	msg  kafka.Message
	done bool
}

// commitQueue guarda, por partição, os pedidos na ordem de leitura.
// Commit no kafka é cumulativo, então só o prefixo respondido pode ser confirmado.
type commitQueue struct {
	mu    sync.Mutex
	parts map[int][]*pending
}

// reset descarta o que ficou de um Run anterior (será relido do último commit)
func (q *commitQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.parts = make(map[int][]*pending)
}

func (q *commitQueue) track(m kafka.Message) *pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.parts == nil {
		q.parts = make(map[int][]*pending)
	}
	p := &pending{msg: m}
	q.parts[m.Partition] = append(q.parts[m.Partition], p)
	return p
}

// finish marca p e devolve as mensagens que podem ser confirmadas agora
func (q *commitQueue) finish(p *pending) []kafka.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.done = true
	queue := q.parts[p.msg.Partition]
	var ready []kafka.Message
	for len(queue) > 0 && queue[0].done {
		ready = append(ready, queue[0].msg)
		queue = queue[1:]
	}
	q.parts[p.msg.Partition] = queue
	return ready
}
