// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"encoding/json"
	"sort"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database"
	"github.com/blinklabs-io/desci/event"
)

// Wire method names
const (
	MethodRegister             = "register"
	MethodGetResearcherProfile = "get-researcher-profile"
	MethodSubmitProposal       = "submit-proposal"
	MethodGetProposal          = "get-proposal"
	MethodVoteOnProposal       = "vote-on-proposal"
	MethodContribute           = "contribute"
	MethodGetContribution      = "get-contribution"
	MethodAddMilestone         = "add-milestone"
	MethodSubmitDeliverable    = "submit-milestone-deliverable"
	MethodApproveMilestone     = "approve-milestone"
	MethodGetMilestone         = "get-milestone"
	MethodGetLastTokenID       = "get-last-token-id"
	MethodGetTokenURI          = "get-token-uri"
	MethodGetOwner             = "get-owner"
	MethodGetToken             = "get-token"
	MethodTransfer             = "transfer"
	MethodIncrement            = "increment"
	MethodDecrement            = "decrement"
	MethodGetCounter           = "get-counter"
)

// callContext carries the per-call bindings handed to method executors
type callContext struct {
	ls     *LedgerState
	txn    *database.Txn
	host   *txnHost
	state  *contract.State
	events []event.Event
}

func (cc *callContext) emit(eventType event.EventType, data any) {
	cc.events = append(cc.events, event.NewEvent(eventType, data))
}

type method struct {
	validate func(json.RawMessage) error
	exec     func(*callContext, json.RawMessage) (any, error)
	readOnly bool
}

func newMethod[T any](
	readOnly bool,
	fn func(*callContext, T) (any, error),
) method {
	return method{
		readOnly: readOnly,
		validate: func(raw json.RawMessage) error {
			_, err := decodeArgs[T](raw)
			return err
		},
		exec: func(cc *callContext, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[T](raw)
			if err != nil {
				return nil, err
			}
			return fn(cc, args)
		},
	}
}

var methods = map[string]method{
	MethodRegister:             newMethod(false, execRegister),
	MethodGetResearcherProfile: newMethod(true, execGetResearcherProfile),
	MethodSubmitProposal:       newMethod(false, execSubmitProposal),
	MethodGetProposal:          newMethod(true, execGetProposal),
	MethodVoteOnProposal:       newMethod(false, execVoteOnProposal),
	MethodContribute:           newMethod(false, execContribute),
	MethodGetContribution:      newMethod(true, execGetContribution),
	MethodAddMilestone:         newMethod(false, execAddMilestone),
	MethodSubmitDeliverable:    newMethod(false, execSubmitDeliverable),
	MethodApproveMilestone:     newMethod(false, execApproveMilestone),
	MethodGetMilestone:         newMethod(true, execGetMilestone),
	MethodGetLastTokenID:       newMethod(true, execGetLastTokenID),
	MethodGetTokenURI:          newMethod(true, execGetTokenURI),
	MethodGetOwner:             newMethod(true, execGetOwner),
	MethodGetToken:             newMethod(true, execGetToken),
	MethodTransfer:             newMethod(false, execTransfer),
	MethodIncrement:            newMethod(false, execIncrement),
	MethodDecrement:            newMethod(false, execDecrement),
	MethodGetCounter:           newMethod(true, execGetCounter),
}

// Methods returns the sorted wire names of all methods
func Methods() []string {
	ret := make([]string, 0, len(methods))
	for name := range methods {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// IsReadOnly reports whether the named method only reads state. Unknown
// methods are reported as not read-only.
func IsReadOnly(name string) bool {
	m, ok := methods[name]
	return ok && m.readOnly
}

func execRegister(cc *callContext, args RegisterArgs) (any, error) {
	if err := cc.state.Register(args.Name, args.Institution); err != nil {
		return nil, err
	}
	if err := cc.indexResearcher(cc.host.Caller()); err != nil {
		return nil, err
	}
	cc.emit(
		event.ResearcherRegisteredEventType,
		event.ResearcherRegisteredEvent{
			Account:     string(cc.host.Caller()),
			Name:        args.Name,
			Institution: args.Institution,
		},
	)
	return nil, nil
}

func execGetResearcherProfile(cc *callContext, args AccountArgs) (any, error) {
	return cc.state.ResearcherProfile(args.Account)
}

func execSubmitProposal(cc *callContext, args SubmitProposalArgs) (any, error) {
	id, err := cc.state.SubmitProposal(
		args.Title,
		args.Abstract,
		args.Category,
		args.FundingRequested,
	)
	if err != nil {
		return nil, err
	}
	proposal, err := cc.indexProposal(id)
	if err != nil {
		return nil, err
	}
	cc.emit(
		event.ProposalSubmittedEventType,
		event.ProposalSubmittedEvent{
			ProposalID:       id,
			Researcher:       string(proposal.Researcher),
			Title:            proposal.Title,
			FundingRequested: proposal.FundingRequested,
			VotingEnds:       proposal.VotingEnds,
		},
	)
	return id, nil
}

func execGetProposal(cc *callContext, args IDArgs) (any, error) {
	return cc.state.Proposal(args.ID)
}

func execVoteOnProposal(cc *callContext, args VoteArgs) (any, error) {
	if err := cc.state.VoteOnProposal(args.ProposalID, args.InFavor); err != nil {
		return nil, err
	}
	if _, err := cc.indexProposal(args.ProposalID); err != nil {
		return nil, err
	}
	return nil, nil
}

func execContribute(cc *callContext, args ContributeArgs) (any, error) {
	before, err := cc.state.Proposal(args.ProposalID)
	if err != nil {
		return nil, err
	}
	contributionID, err := cc.state.Contribute(args.ProposalID, args.Amount)
	if err != nil {
		return nil, err
	}
	contribution, err := cc.indexContribution(contributionID)
	if err != nil {
		return nil, err
	}
	proposal, err := cc.indexProposal(args.ProposalID)
	if err != nil {
		return nil, err
	}
	cc.emit(
		event.ContributionEventType,
		event.ContributionEvent{
			ContributionID: contributionID,
			ProposalID:     args.ProposalID,
			Donor:          string(contribution.Donor),
			Amount:         args.Amount,
			TokenID:        contribution.TokenID,
		},
	)
	if prev, ok := before.Get(); ok &&
		prev.Status != contract.ProposalStatusFunded &&
		proposal.Status == contract.ProposalStatusFunded {
		cc.emit(
			event.ProposalFundedEventType,
			event.ProposalFundedEvent{
				ProposalID:       proposal.ID,
				FundingRequested: proposal.FundingRequested,
				FundingReceived:  proposal.FundingReceived,
			},
		)
	}
	return contributionID, nil
}

func execGetContribution(cc *callContext, args IDArgs) (any, error) {
	return cc.state.Contribution(args.ID)
}

func execAddMilestone(cc *callContext, args AddMilestoneArgs) (any, error) {
	id, err := cc.state.AddMilestone(args.ProposalID, args.Title, args.Amount)
	if err != nil {
		return nil, err
	}
	if _, err := cc.indexMilestone(id); err != nil {
		return nil, err
	}
	return id, nil
}

func execSubmitDeliverable(cc *callContext, args SubmitDeliverableArgs) (any, error) {
	if err := cc.state.SubmitMilestoneDeliverable(args.MilestoneID, *args.Hash); err != nil {
		return nil, err
	}
	milestone, err := cc.indexMilestone(args.MilestoneID)
	if err != nil {
		return nil, err
	}
	cc.emit(
		event.MilestoneSubmittedEventType,
		event.MilestoneSubmittedEvent{
			MilestoneID:     milestone.ID,
			ProposalID:      milestone.ProposalID,
			DeliverableHash: args.Hash.String(),
		},
	)
	return nil, nil
}

func execApproveMilestone(cc *callContext, args IDArgs) (any, error) {
	if err := cc.state.ApproveMilestone(args.ID); err != nil {
		return nil, err
	}
	milestone, err := cc.indexMilestone(args.ID)
	if err != nil {
		return nil, err
	}
	var researcher string
	if opt, err := cc.state.Proposal(milestone.ProposalID); err != nil {
		return nil, err
	} else if proposal, ok := opt.Get(); ok {
		researcher = string(proposal.Researcher)
	}
	cc.emit(
		event.MilestoneApprovedEventType,
		event.MilestoneApprovedEvent{
			MilestoneID: milestone.ID,
			ProposalID:  milestone.ProposalID,
			Researcher:  researcher,
			Amount:      milestone.FundingAmount,
		},
	)
	return nil, nil
}

func execGetMilestone(cc *callContext, args IDArgs) (any, error) {
	return cc.state.Milestone(args.ID)
}

func execGetLastTokenID(cc *callContext, _ NoArgs) (any, error) {
	return cc.state.LastTokenID()
}

func execGetTokenURI(cc *callContext, args IDArgs) (any, error) {
	return cc.state.TokenURI(args.ID)
}

func execGetOwner(cc *callContext, args IDArgs) (any, error) {
	return cc.state.TokenOwner(args.ID)
}

func execGetToken(cc *callContext, args IDArgs) (any, error) {
	return cc.state.Token(args.ID)
}

func execTransfer(cc *callContext, args TransferArgs) (any, error) {
	if err := cc.state.TransferToken(args.TokenID, args.From, args.To); err != nil {
		return nil, err
	}
	cc.emit(
		event.TokenTransferredEventType,
		event.TokenTransferredEvent{
			TokenID: args.TokenID,
			From:    string(args.From),
			To:      string(args.To),
		},
	)
	return nil, nil
}

func execIncrement(cc *callContext, _ NoArgs) (any, error) {
	return cc.state.Increment()
}

func execDecrement(cc *callContext, _ NoArgs) (any, error) {
	return cc.state.Decrement()
}

func execGetCounter(cc *callContext, _ NoArgs) (any, error) {
	return cc.state.GetCounter()
}
